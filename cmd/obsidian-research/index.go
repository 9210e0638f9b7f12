package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yavuztopsever/obsidian-llm-suite/internal/vaultindex"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vault index of generated notes",
	Long: `Index manages a local SQLite index over notes generated by previous
research runs. Use subcommands to search note content or list runs.`,
}

// --- search subcommand ---

var indexSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over generated note titles and bodies",
	RunE:  runIndexSearch,
}

func runIndexSearch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("search query required")
	}
	query := strings.Join(args, " ")

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	results, err := store.Search(context.Background(), query, limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(os.Stdout, "%2d. %s (level %d)\n    %s\n    %s\n",
			i+1, r.Title, r.Level, r.Path, r.Snippet)
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- runs subcommand ---

var indexRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded research runs",
	RunE:  runIndexRuns,
}

func runIndexRuns(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(context.Background())
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-17s  %-7s  %-7s  %s\n", "Run", "Created", "Planned", "Query")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 70))
	for _, r := range runs {
		query := r.Query
		if len(query) > 40 {
			query = query[:37] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-17s  %-7d  %-7d  %s\n", r.ID, r.Created, r.Planned, query)
	}
	return nil
}

// --- shared helpers ---

func openStore(cmd *cobra.Command) (*vaultindex.Store, error) {
	vaultDir, _ := cmd.Flags().GetString("vault-dir")
	if vaultDir == "" {
		vaultDir = "vault"
	}
	maxResults, _ := cmd.Flags().GetInt("max-results")
	return vaultindex.NewStore(vaultDir, maxResults)
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	indexCmd.PersistentFlags().String("vault-dir", "vault", "vault directory holding the index")
	indexCmd.PersistentFlags().Int("max-results", 20, "maximum number of search results")

	// Search flags.
	indexSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	indexSearchCmd.Flags().Bool("json", false, "output results as JSON")

	indexCmd.AddCommand(indexSearchCmd)
	indexCmd.AddCommand(indexRunsCmd)

	rootCmd.AddCommand(indexCmd)
}
