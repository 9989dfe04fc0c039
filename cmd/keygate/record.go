package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/benaskins/keygate/internal/quickmatch"
	"github.com/benaskins/keygate/internal/vault"
)

var recordCmd = &cobra.Command{
	Use:   "record <vault-path> <item-id>",
	Short: "Print the quick-match record identifier for an item",
	Long:  "Build the opaque identifier a host hands back on later requests for the same item, enabling the silent fast path.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		key := quickmatch.Key{
			Provider:   vault.FileProvider,
			Descriptor: path,
			ItemID:     args[1],
		}
		fmt.Println(key.RecordID())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recordCmd)
}
