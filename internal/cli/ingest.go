package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/daybook-ai/memengine/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a document into memory",
		Long:  "Reads text from a file (or stdin when omitted) and runs the ingestion pipeline synchronously, printing a JSON report.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runIngest,
	}
	cmd.Flags().StringP("owner", "o", "", "Owner ID (required)")
	cmd.Flags().StringP("source", "s", "note", "Source type: chat, note or recording")
	_ = cmd.MarkFlagRequired("owner")
	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	source, _ := cmd.Flags().GetString("source")

	text, err := readInput(args)
	if err != nil {
		exitErr("read input", err)
	}

	c, err := initComponents()
	if err != nil {
		exitErr("init", err)
	}
	defer c.close()

	report, err := c.pipeline.IngestText(cmd.Context(), owner, text, memory.SourceType(source))
	if err != nil {
		exitErr("ingest", err)
	}

	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(b))
}

// readInput reads the first file argument, or stdin when none is given.
func readInput(args []string) (string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(args[0])
	return string(data), err
}
