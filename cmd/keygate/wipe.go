package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benaskins/keygate/internal/audit"
	"github.com/benaskins/keygate/internal/secrets"
)

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Erase every cached vault key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		recorder, closeAudit := openAudit()
		defer closeAudit()

		if err := secrets.NewSystemStore().WipeAll(); err != nil {
			recorder.Log(audit.Entry{Action: audit.ActionKeyWipe, Error: err.Error()})
			return err
		}
		recorder.Log(audit.Entry{Action: audit.ActionKeyWipe})
		fmt.Println("Cached keys wiped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(wipeCmd)
}
