package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaskins/keygate/internal/settings"
	"github.com/benaskins/keygate/internal/vault"
)

var vaultsCmd = &cobra.Command{
	Use:   "vaults",
	Short: "Manage the vault catalog",
}

var vaultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogued vaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := settings.Load(settingsPath())
		if err != nil {
			return err
		}
		if len(cfg.Vaults) == 0 {
			fmt.Println("No vaults configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tLOCATION\tTIMEOUT\tREMEMBER KEY")
		for _, e := range cfg.Vaults {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", e.Ref.Name, e.Ref.String(), e.Timeout(), e.Policy.RememberKey)
		}
		return w.Flush()
	},
}

var (
	vaultName     string
	vaultTimeout  time.Duration
	vaultRemember bool
)

var vaultsAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Register an existing vault file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		return registerVault(path)
	},
}

var vaultsCreateCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create a new vault file and register it",
	Long:  "Create an empty sealed vault at the given path, prompting for its master password, and add it to the catalog.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		password, err := readSecret("Master password: ")
		if err != nil {
			return err
		}
		if password == "" {
			return fmt.Errorf("master password must not be empty")
		}

		key := vault.NewKey([]byte(password))
		defer key.Wipe()
		if err := vault.WriteFile(path, key, nil); err != nil {
			return err
		}
		return registerVault(path)
	},
}

func registerVault(path string) error {
	cfg, err := settings.Load(settingsPath())
	if err != nil {
		return err
	}

	name := vaultName
	if name == "" {
		name = filepath.Base(path)
	}
	ref := vault.Ref{Provider: vault.FileProvider, Descriptor: path, Name: name}
	for _, e := range cfg.Vaults {
		if e.Ref.Equal(ref) {
			return fmt.Errorf("vault %s is already catalogued", ref.String())
		}
	}

	cfg.Vaults = append(cfg.Vaults, settings.VaultEntry{
		Ref: ref,
		Policy: settings.UnlockPolicy{
			FallbackTimeout: vaultTimeout,
			RememberKey:     vaultRemember,
		},
	})
	if err := settings.Save(settingsPath(), cfg); err != nil {
		return err
	}
	fmt.Printf("Vault %q added\n", name)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{vaultsAddCmd, vaultsCreateCmd} {
		c.Flags().StringVar(&vaultName, "name", "", "Display name (default: file name)")
		c.Flags().DurationVar(&vaultTimeout, "timeout", 0, "Load timeout (default: global fallback)")
		c.Flags().BoolVar(&vaultRemember, "remember-key", false, "Cache the master key after interactive unlock")
	}
	vaultsCmd.AddCommand(vaultsListCmd)
	vaultsCmd.AddCommand(vaultsAddCmd)
	vaultsCmd.AddCommand(vaultsCreateCmd)
	rootCmd.AddCommand(vaultsCmd)
}
