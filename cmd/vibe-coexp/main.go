// Package main provides the vibe-coexp command-line tool.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-coexp/internal/duckdb"
	"github.com/inodb/vibe-coexp/internal/model"
	"github.com/inodb/vibe-coexp/internal/ontology"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile string
	verbose bool
	logger  = zap.NewNop()
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) || errors.Is(err, model.ErrInvalidQuery) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

// usageError marks errors caused by bad command-line input.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vibe-coexp",
		Short: "Gene coexpression retrieval",
		Long: `vibe-coexp finds genes coexpressed with query genes across expression
datasets, from precomputed gene-to-gene analyses or live probe-level links.`,
		Example: `  # Load TSV exports into the database (one-time setup)
  vibe-coexp load ./export

  # Search TP53 and MDM2 in human datasets
  vibe-coexp search --taxon human --stringency 3 TP53 MDM2

  # Query the precomputed analysis of dataset collection 10
  vibe-coexp canned 10 TP53

  # Run one query per gene listed in a file
  vibe-coexp batch --taxon human genes.txt`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return err
			}
			return initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ~/.vibe-coexp.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	pf.String("db", "", "DuckDB database path (default: ~/.vibe-coexp/coexp.duckdb)")
	viper.BindPFlag("db", pf.Lookup("db"))

	root.AddCommand(newSearchCmd())
	root.AddCommand(newCannedCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newLoadCmd())
	root.AddCommand(newDownloadGOCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vibe-coexp version %s (%s) built %s\n", version, commit, date)
		},
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".vibe-coexp")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("VIBE_COEXP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func initLogger() error {
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.DisableStacktrace = true
		logger, err = cfg.Build()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	return nil
}

// defaultDataDir returns ~/.vibe-coexp.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vibe-coexp"
	}
	return filepath.Join(home, ".vibe-coexp")
}

func dbPath() string {
	if p := viper.GetString("db"); p != "" {
		return p
	}
	return filepath.Join(defaultDataDir(), "coexp.duckdb")
}

// openStore opens the configured database, which must already be loaded.
func openStore() (*duckdb.Store, error) {
	path := dbPath()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no database at %s (load data with: vibe-coexp load <dir>): %w", path, err)
	}
	store, err := duckdb.Open(path)
	if err != nil {
		return nil, err
	}
	store.SetLogger(logger)
	if !store.Loaded() {
		store.Close()
		return nil, fmt.Errorf("database %s has no genes or datasets (load data with: vibe-coexp load <dir>)", path)
	}
	return store, nil
}

// loadOntology loads GO annotations from the configured GAF file, or from
// the downloaded file of taxon. Without either, searches run without GO
// overlaps.
func loadOntology(taxon string) (*ontology.Annotations, error) {
	path := viper.GetString("go.annotations")
	if path == "" {
		var ok bool
		if path, ok = findGOFile(taxon); !ok {
			return nil, nil
		}
	}
	ann, err := ontology.LoadGAF(path)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded GO annotations", zap.String("path", path), zap.Int("genes", ann.GeneCount()))
	return ann, nil
}
