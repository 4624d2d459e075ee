package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-coexp/internal/duckdb"
)

func newLoadCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "load <dir>",
		Short: "Load TSV exports into the database",
		Long: `Load taxa, genes, datasets, dataset collections, analyses, gene links,
probe links and tested-in tables from TSV files in a directory.

genes.tsv and datasets.tsv are required; other files are optional. Files
unchanged since the last load are skipped unless --force is given.`,
		Example: `  vibe-coexp load ./export
  vibe-coexp load --force --db /data/coexp.duckdb ./export`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(args[0], force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reload files even when unchanged")

	return cmd
}

func runLoad(dir string, force bool) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return usageError{fmt.Errorf("%s is not a directory", dir)}
	}

	path := dbPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", filepath.Dir(path), err)
	}
	store, err := duckdb.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	store.SetLogger(logger)

	fmt.Printf("Loading %s into %s\n", dir, path)
	start := time.Now()
	reports, err := store.Load(dir, force)
	if err != nil {
		return err
	}

	for _, r := range reports {
		switch {
		case r.Missing:
			fmt.Printf("  %-20s not found, skipped\n", r.Table)
		case r.Skipped:
			fmt.Printf("  %-20s unchanged, skipped\n", r.Table)
		default:
			fmt.Printf("  %-20s %d rows\n", r.Table, r.Rows)
		}
	}
	logger.Info("load complete", zap.String("db", path), zap.Duration("elapsed", time.Since(start)))
	return nil
}
