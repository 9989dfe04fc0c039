package main

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/benaskins/keygate/internal/applock"
	"github.com/benaskins/keygate/internal/quickmatch"
	"github.com/benaskins/keygate/internal/secrets"
	"github.com/benaskins/keygate/internal/session"
	"github.com/benaskins/keygate/internal/settings"
	"github.com/benaskins/keygate/internal/tui"
	"github.com/benaskins/keygate/internal/vault"
	"github.com/benaskins/keygate/internal/watchdog"
)

var sessionCmd = &cobra.Command{
	Use:   "session [service-id...]",
	Short: "Fulfill an autofill request interactively",
	Long:  "Run the interactive flow in the terminal: app-lock gate, vault picker, unlock prompt, and entry browser.",
	RunE:  runSession,
}

var sessionRecord string

func init() {
	sessionCmd.Flags().StringVar(&sessionRecord, "record", "", "Quick-match record identifier to retry after unlock")
	rootCmd.AddCommand(sessionCmd)
}

// teaHost reports the outcome and quits the program. The quit message
// goes out on its own goroutine: the outcome often lands while the
// program's update loop is the caller, and a direct Send would block
// against it.
type teaHost struct {
	program *tea.Program
	done    chan session.Outcome
}

func (h *teaHost) Complete(username, password string) {
	h.done <- session.Fulfilled(session.Credential{Username: username, Password: password})
	go h.program.Send(tui.FinishedMsg{})
}

func (h *teaHost) Cancel(reason session.Reason) {
	h.done <- session.Cancelled(reason)
	go h.program.Send(tui.FinishedMsg{})
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := settings.Load(settingsPath())
	if err != nil {
		return err
	}
	catalog := settings.NewCatalog(cfg)
	keys := secrets.NewSystemStore()
	recorder, closeAudit := openAudit()
	defer closeAudit()

	loader := vault.NewFileLoader()
	flows := tui.NewFlows(loader, catalog, keys)

	// The gate and watchdog callbacks close over the coordinator, which
	// needs both at construction; bind late.
	var coord *session.Coordinator

	gate := applock.New(applock.Config{
		PasscodeHash:     cfg.PasscodeHash,
		Threshold:        cfg.Attempts(),
		BiometricEnabled: cfg.BiometricEnabled,
		Reprompt:         cfg.Reprompt(),
	}, keys,
		applock.WithAudit(recorder),
		applock.WithWiped(func() { coord.Post(session.CacheWiped{}) }),
	)
	dog := watchdog.New(cfg.Inactivity(),
		watchdog.WithMustLock(func() { go coord.Post(session.MustLock{}) }),
	)

	program := tea.NewProgram(tui.NewModel(dog.NoteActivity), tea.WithAltScreen())
	flows.SetProgram(program)
	host := &teaHost{program: program, done: make(chan session.Outcome, 1)}

	coord = session.New(host, catalog, quickmatch.NewResolver(catalog, keys),
		loader, gate, dog, flows, session.WithAudit(recorder))

	ctx := cmd.Context()
	dog.Start(ctx)
	defer dog.Stop()

	go func() {
		if err := settings.Watch(ctx, settingsPath(), catalog, slog.Default()); err != nil {
			slog.Warn("settings watch unavailable", "error", err)
		}
	}()

	req := session.NewRequest(args, sessionRecord)
	go func() {
		// Sends block until the program loop is running.
		if err := coord.PrepareUI(ctx, req); err != nil {
			slog.Error("interactive session rejected", "error", err)
			program.Send(tui.FinishedMsg{})
		}
	}()

	if _, err := program.Run(); err != nil {
		return err
	}

	// Quitting the terminal without an outcome (ctrl+c) cancels the
	// request the same way closing the host surface would.
	select {
	case outcome := <-host.done:
		return printOutcome(outcome)
	default:
	}
	coord.Post(session.ChildCanceled{})
	return printOutcome(<-host.done)
}

func printOutcome(outcome session.Outcome) error {
	if outcome.Fulfilled {
		fmt.Printf("username: %s\npassword: %s\n", outcome.Credential.Username, outcome.Credential.Password)
		return nil
	}
	if outcome.Reason == session.ReasonFailed {
		return fmt.Errorf("request failed")
	}
	fmt.Printf("cancelled: %s\n", outcome.Reason)
	return nil
}
