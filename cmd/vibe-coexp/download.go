package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// GO annotation (GAF) downloads from the Gene Ontology Consortium.
const goBaseURL = "https://current.geneontology.org/annotations"

// goAnnotationFiles maps taxon common names to their GAF file.
var goAnnotationFiles = map[string]string{
	"human": "goa_human.gaf.gz",
	"mouse": "mgi.gaf.gz",
	"rat":   "rgd.gaf.gz",
}

// goAnnotationURL returns the GAF URL for the given taxon.
func goAnnotationURL(taxon string) (string, error) {
	name, ok := goAnnotationFiles[strings.ToLower(taxon)]
	if !ok {
		return "", usageError{fmt.Errorf("no GO annotation file known for taxon %q (use human, mouse or rat)", taxon)}
	}
	return goBaseURL + "/" + name, nil
}

func newDownloadGOCmd() *cobra.Command {
	var (
		taxon     string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "download-go",
		Short: "Download GO annotations for GO overlap scoring",
		Long: `Download a Gene Ontology annotation file (GAF) for a taxon.

After downloading, searches for that taxon report GO term overlaps between the
query gene and its top coexpressed genes.`,
		Example: `  # Download human annotations (default)
  vibe-coexp download-go

  # Download mouse annotations to a custom directory
  vibe-coexp download-go --taxon mouse --output /data/go`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := goAnnotationURL(taxon)
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = defaultGOPath()
			}
			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", outputDir, err)
			}

			fmt.Printf("Downloading GO annotations for %s...\n", taxon)
			fmt.Printf("Destination: %s\n\n", outputDir)

			dest := filepath.Join(outputDir, filepath.Base(url))
			if err := downloadFile(url, dest); err != nil {
				return fmt.Errorf("downloading GO annotations: %w", err)
			}

			fmt.Printf("\nDownload complete!\n")
			fmt.Printf("To use these annotations, run:\n")
			fmt.Printf("  vibe-coexp config set go.annotations %s\n", dest)
			return nil
		},
	}

	cmd.Flags().StringVar(&taxon, "taxon", "human", "Taxon: human, mouse or rat")
	cmd.Flags().StringVar(&outputDir, "output", "", "Output directory (default: ~/.vibe-coexp/go/)")

	return cmd
}

// downloadFile fetches url into destPath through a temporary file, so an
// interrupted download never leaves a truncated GAF behind. An existing
// destPath is kept.
func downloadFile(url, destPath string) error {
	if info, err := os.Stat(destPath); err == nil {
		fmt.Printf("  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmpPath, destPath)
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download %s: %w", filepath.Base(destPath), err)
	}

	logger.Info("downloaded GO annotations", zap.String("path", destPath), zap.Int64("bytes", n))
	fmt.Printf("  %s: %s\n", filepath.Base(destPath), formatSize(n))
	return nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// defaultGOPath returns the default directory for GO annotation files.
func defaultGOPath() string {
	return filepath.Join(defaultDataDir(), "go")
}

// findGOFile returns the downloaded GAF for a taxon, if present.
func findGOFile(taxon string) (string, bool) {
	name, ok := goAnnotationFiles[strings.ToLower(taxon)]
	if !ok {
		return "", false
	}
	path := filepath.Join(defaultGOPath(), name)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}
