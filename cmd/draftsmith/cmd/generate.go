package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/draftsmith-eda/draftsmith/pkg/circuit"
	"github.com/draftsmith-eda/draftsmith/pkg/config"
	"github.com/draftsmith-eda/draftsmith/pkg/llm"
	"github.com/draftsmith-eda/draftsmith/pkg/orchestrator"
	"github.com/draftsmith-eda/draftsmith/pkg/schematic"
	"github.com/draftsmith-eda/draftsmith/pkg/symbols"
)

var (
	inputPath    string
	outDir       string
	maxIters     int
	llmValidator bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a KiCad schematic from a circuit JSON file",
	Long: `Generate reads a circuit description (native or pseudo-CAD JSON),
asks the configured LLM to write a KiCad 9 schematic, and iterates
generation against the consistency checker and KiCad ERC until the
schematic is accepted or the iteration budget runs out.

Examples:
  draftsmith generate --input circuit.json
  draftsmith generate --input export.json --out-dir build --iters 5
  draftsmith generate --input circuit.json --llm-validator`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&inputPath, "input", "i", "",
		"circuit JSON file (required)")
	generateCmd.Flags().StringVarP(&outDir, "out-dir", "o", "",
		"output directory (default from config, normally ./output)")
	generateCmd.Flags().IntVarP(&maxIters, "iters", "n", 0,
		"maximum generate-check-repair iterations (default from config)")
	generateCmd.Flags().BoolVar(&llmValidator, "llm-validator", false,
		"also ask the LLM to review the schematic for KiCad 9 compliance")
	_ = generateCmd.MarkFlagRequired("input")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(Version)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger()
	defer logger.Sync()

	// An unreadable input file is the one unrecoverable user error.
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input file %s: %w", inputPath, err)
	}
	spec := circuit.Parse(data)

	if outDir == "" {
		outDir = cfg.Generate.OutDir
	}
	if maxIters <= 0 {
		maxIters = cfg.Generate.MaxIterations
	}

	oracleCfg := &llm.Config{
		Endpoint:       cfg.Oracle.Endpoint,
		Model:          cfg.Oracle.Model,
		APIKey:         cfg.Oracle.APIKey,
		EmbeddingModel: cfg.Oracle.EmbeddingModel,
		MaxTokens:      cfg.Oracle.MaxTokens,
		Timeout:        time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
	}
	oracle, err := llm.NewOracle(cfg.Oracle.Provider, oracleCfg, logger)
	if err != nil {
		return fmt.Errorf("create oracle: %w", err)
	}

	catalog := symbols.BuildCatalog(symbols.DefaultDirs(cfg.Symbols.Dir), logger)
	searcher := openSearcher(cfg, oracleCfg, logger)
	resolver := symbols.NewResolver(catalog, searcher, logger)

	var checkOracle llm.Oracle
	if llmValidator {
		checkOracle = oracle
	}
	checker := schematic.NewChecker(checkOracle, logger)
	synth := schematic.NewSynthesizer(oracle, filepath.Join(outDir, orchestrator.DebugDirName), logger)
	erc := schematic.NewKicadERC(logger)

	orch := orchestrator.New(synth, checker, erc, resolver, logger)
	result, err := orch.Run(cmd.Context(), spec, string(data), &orchestrator.Config{
		OutDir:            outDir,
		MaxIterations:     maxIters,
		CandidatesPerPart: cfg.Generate.CandidatesPerPart,
		Progress: func(line string) {
			fmt.Println(line)
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("\nSchematic written to %s (%s after %d iteration(s))\n",
		result.Path, result.State, result.Iterations)
	return nil
}

// openSearcher wires similarity search when an embedding index exists.
// Missing index or a non-embedding provider just disables the fallback;
// resolution then relies on the catalog and placeholders.
func openSearcher(cfg *config.Config, oracleCfg *llm.Config, logger *zap.Logger) symbols.Searcher {
	if cfg.Oracle.Provider != llm.ProviderOpenAI {
		return nil
	}
	if _, err := os.Stat(cfg.Symbols.IndexPath); err != nil {
		return nil
	}
	store, err := symbols.OpenVectorStore(cfg.Symbols.IndexPath)
	if err != nil {
		logger.Warn("could not open symbol index; similarity search disabled",
			zap.String("path", cfg.Symbols.IndexPath), zap.Error(err))
		return nil
	}
	embedder, err := llm.NewClient(oracleCfg, logger)
	if err != nil {
		return nil
	}
	return symbols.NewEmbeddingSearcher(embedder, store, logger)
}
