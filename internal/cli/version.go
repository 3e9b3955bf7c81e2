package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func init() {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the memengine version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memengine version %s\n", Version)
		},
	}
	RootCmd.AddCommand(cmd)
}
