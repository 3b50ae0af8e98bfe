package main

import (
	"fmt"

	"github.com/aryanfhm/tgsnap/internal/session"
	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	var (
		configPath string
		account    string
	)

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Log an account out and discard its session",
		Long:  "Revokes the account's authorization with Telegram and removes the stored session file. Stored snapshots are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd, configPath, account)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path")
	cmd.Flags().StringVarP(&account, "account", "a", "", "phone number (overrides config default)")
	return cmd
}

func runLogout(cmd *cobra.Command, configPath, account string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	rawAccount, err := a.resolveAccount(account)
	if err != nil {
		return err
	}
	accountID, err := session.NormalizePhone(rawAccount, a.cfg.CountryCode)
	if err != nil {
		return err
	}

	// A fresh process has no live session yet; connect so the platform-side
	// logout can happen before the session file is discarded.
	if _, err := a.registry.GetOrCreate(cmd.Context(), accountID); err != nil {
		return err
	}
	if err := a.login.Logout(cmd.Context(), accountID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s logged out\n", accountID)
	return nil
}
