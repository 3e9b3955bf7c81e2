package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daybook-ai/memengine/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "tags [file]",
		Short: "Suggest tags for a document",
		Long:  "Reads text from a file (or stdin when omitted) and prints 3-5 tag suggestions as JSON.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runTags,
	}
	cmd.Flags().StringP("resource-type", "r", "note", "Resource type: note, recording or task")
	cmd.Flags().StringSliceP("existing", "e", nil, "Existing tag names to avoid duplicating")
	RootCmd.AddCommand(cmd)
}

func runTags(cmd *cobra.Command, args []string) {
	resourceType, _ := cmd.Flags().GetString("resource-type")
	existing, _ := cmd.Flags().GetStringSlice("existing")

	text, err := readInput(args)
	if err != nil {
		exitErr("read input", err)
	}

	c, err := initComponents()
	if err != nil {
		exitErr("init", err)
	}
	defer c.close()

	if c.suggester == nil {
		exitErr("tags", errors.New("classifier API key not configured"))
	}

	suggestions, err := c.suggester.SuggestTags(cmd.Context(), memory.TagRequest{
		Content:      text,
		ResourceType: memory.TagResourceType(resourceType),
		ExistingTags: existing,
	})
	if err != nil {
		exitErr("suggest tags", err)
	}
	if len(suggestions) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(suggestions, "", "  ")
	fmt.Println(string(b))
}
