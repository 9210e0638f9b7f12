package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yavuztopsever/obsidian-llm-suite/internal/content"
	"github.com/yavuztopsever/obsidian-llm-suite/internal/plan"
	"github.com/yavuztopsever/obsidian-llm-suite/internal/research"
	"github.com/yavuztopsever/obsidian-llm-suite/internal/vaultindex"
	"github.com/yavuztopsever/obsidian-llm-suite/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Generate a tree of interlinked notes from a research query",
	Long: `Research plans a bounded topic hierarchy for the query, generates
content for every topic, and writes one Markdown note per topic into the
output directory. Filenames encode the hierarchy ({parent}_{child}.md) and
every note carries a metadata block linking it to its parent.

The query is given inline with --query, or through a YAML input file naming
the query plus optional context documents and a required root filename.
On success the root note's path is printed to stdout.`,
	RunE: runResearch,
}

func runResearch(cmd *cobra.Command, args []string) error {
	input, err := researchInput(cmd)
	if err != nil {
		return err
	}

	cfg := researchConfig(cmd)
	if cfg.Planning.APIKey == "" {
		return fmt.Errorf("no OpenAI API key: set .secrets/openai-api-key or OBSIDIAN_RESEARCH_OPENAI_API_KEY")
	}
	if cfg.Content.APIKey == "" {
		return fmt.Errorf("no Perplexity API key: set .secrets/perplexity-api-key or OBSIDIAN_RESEARCH_PERPLEXITY_API_KEY")
	}

	planner := plan.NewOpenAIBackend(cfg.Planning)
	generator := content.NewPerplexityBackend(cfg.Content)
	researcher := research.New(cfg, planner, generator, os.Stderr)

	result, err := researcher.Run(context.Background(), input)
	if err != nil {
		return err
	}

	if cfg.Index {
		if err := recordRun(cfg, input, result); err != nil {
			fmt.Fprintf(os.Stderr, "warning: vault index update failed: %v\n", err)
		}
	}

	fmt.Println(result.RootPath)
	return nil
}

// researchInput resolves the query from --query or --input-file, with
// --root-name overriding any required root filename from the input file.
func researchInput(cmd *cobra.Command) (research.Input, error) {
	query, _ := cmd.Flags().GetString("query")
	inputFile, _ := cmd.Flags().GetString("input-file")

	var (
		input research.Input
		err   error
	)
	switch {
	case query != "":
		input = research.Input{Query: query}
	case inputFile != "":
		input, err = research.LoadInput(inputFile, os.Stderr)
		if err != nil {
			return research.Input{}, err
		}
	default:
		return research.Input{}, fmt.Errorf("a query is required: provide --query or --input-file")
	}

	if rootName, _ := cmd.Flags().GetString("root-name"); rootName != "" {
		input.RequiredRootName = rootName
	}
	return input, nil
}

func researchConfig(cmd *cobra.Command) types.ResearchConfig {
	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir == "" {
		outputDir = viper.GetString("research.output_dir")
	}
	if outputDir == "" {
		outputDir = "vault"
	}

	planningModel, _ := cmd.Flags().GetString("planning-model")
	if planningModel == "" {
		planningModel = "o4-mini"
	}
	contentModel, _ := cmd.Flags().GetString("content-model")
	if contentModel == "" {
		contentModel = "sonar-pro"
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	strict, _ := cmd.Flags().GetBool("strict")
	index, _ := cmd.Flags().GetBool("index")

	return types.ResearchConfig{
		Planning: types.PlanningConfig{
			AIConfig: types.AIConfig{
				Model:          planningModel,
				APIKey:         secretDefault("openai-api-key", viper.GetString("openai_api_key")),
				MaxRetries:     maxRetries,
				RequestTimeout: timeout,
			},
		},
		Content: types.ContentConfig{
			AIConfig: types.AIConfig{
				Model:          contentModel,
				APIKey:         secretDefault("perplexity-api-key", viper.GetString("perplexity_api_key")),
				MaxRetries:     maxRetries,
				RequestTimeout: timeout,
			},
			SearchContextSize: viper.GetString("research.search_context_size"),
		},
		OutputDir: outputDir,
		Strict:    strict || viper.GetBool("research.strict"),
		Index:     index,
	}
}

// recordRun stores the run and its generated notes in the vault index.
func recordRun(cfg types.ResearchConfig, input research.Input, result *research.Result) error {
	store, err := vaultindex.NewStore(cfg.OutputDir, 0)
	if err != nil {
		return err
	}
	defer store.Close()

	run := vaultindex.RunRecord{
		ID:        time.Now().UTC().Format("20060102-150405"),
		Query:     input.Query,
		RootPath:  result.RootPath,
		Planned:   result.Summary.Planned,
		Created:   result.Summary.Created,
		Timestamp: time.Now(),
	}

	var notes []vaultindex.NoteRecord
	for _, n := range result.Plan.Notes {
		info := result.Files[n.ID]
		if info == nil {
			continue
		}
		body, err := os.ReadFile(info.Path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", info.Path, err)
		}

		parentBasename := ""
		if n.ParentID != nil {
			if parent := result.Files[*n.ParentID]; parent != nil {
				parentBasename = parent.Basename
			}
		}

		notes = append(notes, vaultindex.NoteRecord{
			Basename:       info.Basename,
			Path:           info.Path,
			Title:          n.Title,
			ParentBasename: parentBasename,
			Level:          n.Level,
			Concepts:       conceptsFromNote(string(body)),
			Body:           string(body),
		})
	}

	return store.Record(context.Background(), run, notes)
}

// conceptsFromNote recovers concept tags from a note's metadata block.
func conceptsFromNote(body string) []string {
	for _, line := range strings.Split(body, "\n") {
		rest, ok := strings.CutPrefix(line, "concepts: ")
		if !ok {
			continue
		}
		var concepts []string
		for _, tag := range strings.Fields(rest) {
			tag = strings.TrimPrefix(tag, "#")
			if tag != "" && tag != "placeholder" {
				concepts = append(concepts, tag)
			}
		}
		return concepts
	}
	return nil
}

func init() {
	researchCmd.Flags().String("query", "", "inline research query")
	researchCmd.Flags().String("input-file", "", "YAML query file or plain-text query file")
	researchCmd.Flags().String("output-dir", "", "vault directory for generated notes (default \"vault\")")
	researchCmd.Flags().String("root-name", "", "required basename for the root note file")
	researchCmd.Flags().String("planning-model", "", "planning model identifier (default \"o4-mini\")")
	researchCmd.Flags().String("content-model", "", "content model identifier (default \"sonar-pro\")")
	researchCmd.Flags().Duration("timeout", 0, "per-request timeout for AI calls (default 3m)")
	researchCmd.Flags().Int("max-retries", 3, "retry attempts for failed AI calls")
	researchCmd.Flags().Bool("strict", false, "reject plans outside the depth and note-count bounds")
	researchCmd.Flags().Bool("index", false, "record generated notes in the vault index")

	rootCmd.AddCommand(researchCmd)
}
