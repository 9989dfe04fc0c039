package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benaskins/keygate/internal/applock"
	"github.com/benaskins/keygate/internal/quickmatch"
	"github.com/benaskins/keygate/internal/secrets"
	"github.com/benaskins/keygate/internal/session"
	"github.com/benaskins/keygate/internal/settings"
	"github.com/benaskins/keygate/internal/vault"
	"github.com/benaskins/keygate/internal/watchdog"
)

var fulfillCmd = &cobra.Command{
	Use:   "fulfill [service-id...]",
	Short: "Fulfill an autofill request without UI",
	Long:  "Attempt the silent fast path. Prints the credential on success; on a cancellation, prints the reason the host would use to decide on an interactive retry.",
	RunE:  runFulfill,
}

var fulfillRecord string

func init() {
	fulfillCmd.Flags().StringVar(&fulfillRecord, "record", "", "Quick-match record identifier")
	rootCmd.AddCommand(fulfillCmd)
}

// cliHost delivers the single terminal outcome to a waiting command.
type cliHost struct {
	done chan session.Outcome
}

func newCLIHost() *cliHost {
	return &cliHost{done: make(chan session.Outcome, 1)}
}

func (h *cliHost) Complete(username, password string) {
	h.done <- session.Fulfilled(session.Credential{Username: username, Password: password})
}

func (h *cliHost) Cancel(reason session.Reason) {
	h.done <- session.Cancelled(reason)
}

func runFulfill(cmd *cobra.Command, args []string) error {
	cfg, err := settings.Load(settingsPath())
	if err != nil {
		return err
	}
	catalog := settings.NewCatalog(cfg)
	keys := secrets.NewSystemStore()
	recorder, closeAudit := openAudit()
	defer closeAudit()

	gate := applock.New(applock.Config{
		PasscodeHash:     cfg.PasscodeHash,
		Threshold:        cfg.Attempts(),
		BiometricEnabled: cfg.BiometricEnabled,
		Reprompt:         cfg.Reprompt(),
	}, keys, applock.WithAudit(recorder))
	dog := watchdog.New(cfg.Inactivity())

	host := newCLIHost()
	// The silent path never starts a child flow, so no flow bridge is
	// wired here.
	coord := session.New(host, catalog, quickmatch.NewResolver(catalog, keys),
		vault.NewFileLoader(), gate, dog, nil, session.WithAudit(recorder))

	req := session.NewRequest(args, fulfillRecord)
	if err := coord.ProvideWithoutUI(cmd.Context(), req); err != nil {
		return err
	}

	outcome := <-host.done
	if outcome.Fulfilled {
		fmt.Printf("username: %s\npassword: %s\n", outcome.Credential.Username, outcome.Credential.Password)
		return nil
	}
	if outcome.Reason == session.ReasonFailed {
		return fmt.Errorf("request failed")
	}
	fmt.Printf("cancelled: %s (retry with 'keygate session')\n", outcome.Reason)
	return nil
}
