package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/benaskins/keygate/internal/applock"
	"github.com/benaskins/keygate/internal/settings"
)

var passcodeCmd = &cobra.Command{
	Use:   "passcode",
	Short: "Manage the app-lock passcode",
}

var passcodeSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the app-lock passcode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		passcode, err := readSecret("New passcode: ")
		if err != nil {
			return err
		}
		if passcode == "" {
			return fmt.Errorf("passcode must not be empty")
		}
		confirm, err := readSecret("Repeat passcode: ")
		if err != nil {
			return err
		}
		if passcode != confirm {
			return fmt.Errorf("passcodes do not match")
		}

		hash, err := applock.HashPasscode(passcode)
		if err != nil {
			return err
		}

		cfg, err := settings.Load(settingsPath())
		if err != nil {
			return err
		}
		cfg.PasscodeHash = hash
		if err := settings.Save(settingsPath(), cfg); err != nil {
			return err
		}
		fmt.Println("Passcode set")
		return nil
	},
}

var passcodeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the app-lock passcode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := settings.Load(settingsPath())
		if err != nil {
			return err
		}
		cfg.PasscodeHash = ""
		if err := settings.Save(settingsPath(), cfg); err != nil {
			return err
		}
		fmt.Println("Passcode removed")
		return nil
	},
}

func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passcode: %w", err)
	}
	return string(b), nil
}

func init() {
	passcodeCmd.AddCommand(passcodeSetCmd)
	passcodeCmd.AddCommand(passcodeClearCmd)
	rootCmd.AddCommand(passcodeCmd)
}
