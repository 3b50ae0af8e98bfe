package main

import (
	"encoding/json"
	"fmt"

	"github.com/aryanfhm/tgsnap/internal/session"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	var (
		configPath   string
		account      string
		conversation string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored snapshot as JSON",
		Long:  "Prints the account's latest stored snapshot. With --conversation, prints only that conversation's recent messages.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, configPath, account, conversation)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path")
	cmd.Flags().StringVarP(&account, "account", "a", "", "phone number (overrides config default)")
	cmd.Flags().StringVar(&conversation, "conversation", "", "print only this conversation key")
	return cmd
}

func runShow(cmd *cobra.Command, configPath, account, conversation string) error {
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

	var payload any
	if conversation != "" {
		payload, err = a.ingest.Conversation(accountID, conversation)
	} else {
		payload, err = a.ingest.Snapshot(accountID)
	}
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
