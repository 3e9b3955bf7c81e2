package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daybook-ai/memengine/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memory by semantic similarity",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}
	cmd.Flags().StringP("owner", "o", "", "Owner ID (required)")
	cmd.Flags().String("category", "general", "Category: finance, work, health or general")
	cmd.Flags().IntP("top-k", "k", 0, "Max results (default from config)")
	cmd.Flags().Float64P("threshold", "t", -1, "Minimum similarity, 0 to 1 (default from config)")
	_ = cmd.MarkFlagRequired("owner")
	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	category, _ := cmd.Flags().GetString("category")
	topK, _ := cmd.Flags().GetInt("top-k")
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	c, err := initComponents()
	if err != nil {
		exitErr("init", err)
	}
	defer c.close()

	req := memory.SearchRequest{
		OwnerID:  owner,
		Category: memory.Category(category),
		Query:    strings.Join(args, " "),
		TopK:     topK,
	}
	if threshold >= 0 {
		req.Threshold = &threshold
	}

	results, err := c.retriever.Search(cmd.Context(), req)
	if err != nil {
		exitErr("search", err)
	}
	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
