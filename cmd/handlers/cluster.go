package handlers

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"pulse/internal/config"
	"pulse/internal/core"
	"pulse/internal/llm"
	"pulse/internal/logger"
	"pulse/internal/pipeline"
	"pulse/internal/source"
	"pulse/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// NewClusterCmd creates the cluster command, the main entry point of the tool.
func NewClusterCmd() *cobra.Command {
	clusterCmd := &cobra.Command{
		Use:   "cluster [input.json]",
		Short: "Cluster a timeline batch into topics",
		Long: `Read a fetched timeline batch from a JSON file, cluster it into
topics, and write per-cluster files plus manifest.json to the output
directory.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			output, _ := cmd.Flags().GetString("output")
			if err := runCluster(cmd, args[0], output); err != nil {
				logger.Error("Clustering run failed", err)
				os.Exit(1)
			}
		},
	}

	clusterCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
	return clusterCmd
}

func runCluster(cmd *cobra.Command, inputPath, output string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if output != "" {
		cfg.Output.Directory = output
	}

	result, err := source.LoadFile(inputPath)
	if err != nil {
		return fmt.Errorf("loading input: %w", err)
	}
	logger.Get().Info().
		Int("records", len(result.Records)).
		Int("dropped", result.Dropped).
		Str("input", inputPath).
		Msg("loaded batch")

	embedder, cleanup, err := buildEmbedder(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	m, err := pipeline.New(cfg, embedder).Run(cmd.Context(), result.Records, result.Dropped)
	if err != nil {
		return err
	}

	fmt.Println(renderSummary(m, cfg.Output.Directory))
	return nil
}

// buildEmbedder wires the Gemini client, wrapped in the sqlite cache when
// enabled. The cleanup closes the cache store.
func buildEmbedder(cmd *cobra.Command, cfg *config.Config) (llm.Embedder, func(), error) {
	client, err := llm.NewClient(cmd.Context(), cfg.Gemini)
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedding client: %w", err)
	}
	if !cfg.Cache.Enabled {
		return client, func() {}, nil
	}

	cache, err := store.NewStore(cfg.Cache.Directory)
	if err != nil {
		logger.Get().Warn().Err(err).Msg("embedding cache unavailable, continuing without it")
		return client, func() {}, nil
	}
	return llm.NewCached(client, cache), func() { _ = cache.Close() }, nil
}

func renderSummary(m core.Manifest, dir string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Clustered %d records into %d topics", m.TotalRecords, m.ClusterCount)))
	b.WriteString("\n\n")

	for _, c := range m.Clusters {
		b.WriteString(fmt.Sprintf("  %2d. %s %s\n", c.ID, c.Label, dimStyle.Render(fmt.Sprintf("(%d posts)", c.Size))))
	}
	if len(m.Clusters) > 0 {
		b.WriteString("\n")
	}

	verdict := passStyle.Render("PASS")
	if !m.Quality.Pass {
		verdict = failStyle.Render("FAIL")
	}
	b.WriteString(fmt.Sprintf("  Quality: %s  cohesion %.3f, noise %.1f%%\n",
		verdict, m.Quality.CohesionScore, 100*m.Quality.NoiseFraction))
	b.WriteString(fmt.Sprintf("  Highlights: %d at %d+ %s\n", m.Highlights.Count, m.Highlights.Threshold, m.Highlights.Metric))

	for _, w := range m.Warnings {
		b.WriteString(failStyle.Render(fmt.Sprintf("  ! %s", w)))
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("  Artifacts in %s (run %s)", dir, m.RunID)))
	return b.String()
}
