package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/draftsmith-eda/draftsmith/pkg/config"
	"github.com/draftsmith-eda/draftsmith/pkg/llm"
	"github.com/draftsmith-eda/draftsmith/pkg/symbols"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the symbol similarity index from installed KiCad libraries",
	Long: `Index scans the local KiCad symbol libraries, embeds every symbol
name with the configured embedding model, and caches the vectors in a
SQLite file. The generate command uses this index to suggest library
symbols when a part has no direct catalog match.

Symbols already present in the index are skipped, so re-running after a
KiCad upgrade only embeds the new symbols.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(Version)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger()
	defer logger.Sync()

	if cfg.Oracle.Provider != llm.ProviderOpenAI {
		return fmt.Errorf("indexing needs an OpenAI-compatible endpoint for embeddings; provider is %q", cfg.Oracle.Provider)
	}

	catalog := symbols.BuildCatalog(symbols.DefaultDirs(cfg.Symbols.Dir), logger)
	if catalog.Size() == 0 {
		return fmt.Errorf("no KiCad symbol libraries found; set KICAD_SYMBOLS_DIR or install KiCad")
	}
	fmt.Printf("Found %d symbols in %d libraries\n", catalog.Size(), len(catalog.Libraries()))

	embedder, err := llm.NewClient(&llm.Config{
		Endpoint:       cfg.Oracle.Endpoint,
		Model:          cfg.Oracle.Model,
		APIKey:         cfg.Oracle.APIKey,
		EmbeddingModel: cfg.Oracle.EmbeddingModel,
		Timeout:        time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("create embedding client: %w", err)
	}

	if dir := filepath.Dir(cfg.Symbols.IndexPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create index directory: %w", err)
		}
	}
	store, err := symbols.OpenVectorStore(cfg.Symbols.IndexPath)
	if err != nil {
		return fmt.Errorf("open symbol index: %w", err)
	}
	defer store.Close()

	added, err := symbols.BuildIndex(cmd.Context(), catalog, embedder, store, logger)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	total, _ := store.Count()
	fmt.Printf("Indexed %d new symbols (%d total) into %s\n", added, total, cfg.Symbols.IndexPath)
	return nil
}
