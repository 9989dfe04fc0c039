package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/benaskins/keygate/internal/audit"
	"github.com/benaskins/keygate/internal/settings"
)

var rootCmd = &cobra.Command{
	Use:   "keygate",
	Short: "Credential autofill fulfillment engine",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

var (
	settingsFlag string
	verbose      bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFlag, "settings", "", "Settings file (default ~/.keygate/settings.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func settingsPath() string {
	if settingsFlag != "" {
		return settingsFlag
	}
	return settings.DefaultPath()
}

func auditPath() string {
	return filepath.Join(filepath.Dir(settingsPath()), "audit.log")
}

// openAudit opens the audit log, degrading to a discard recorder when the
// file cannot be opened. Auditing must never block fulfillment.
func openAudit() (audit.Recorder, func()) {
	logger, err := audit.NewLogger(auditPath())
	if err != nil {
		slog.Warn("audit log unavailable", "error", err)
		return audit.Discard{}, func() {}
	}
	return logger, func() { _ = logger.Close() }
}
