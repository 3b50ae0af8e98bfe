package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aryanfhm/tgsnap/internal/api"
	"github.com/aryanfhm/tgsnap/internal/ingest"
	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	var (
		configPath       string
		account          string
		maxConversations int
		maxUnread        int
		maxRecent        int
		conversationID   int64
		timeout          time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build a fresh conversation snapshot",
		Long:  "Traverses the account's conversations, collects unread and recent messages, and atomically replaces the stored snapshot.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := ingest.Options{
				MaxConversations:     maxConversations,
				MaxUnread:            maxUnread,
				MaxRecent:            maxRecent,
				TargetConversationID: conversationID,
			}
			return runIngest(cmd, configPath, account, opts, timeout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path")
	cmd.Flags().StringVarP(&account, "account", "a", "", "phone number (overrides config default)")
	cmd.Flags().IntVar(&maxConversations, "max-conversations", 0, "conversation visit limit (0 = config value)")
	cmd.Flags().IntVar(&maxUnread, "max-unread", 0, "unread messages kept per conversation (0 = config value)")
	cmd.Flags().IntVar(&maxRecent, "max-recent", 0, "recent messages kept per conversation (0 = config value)")
	cmd.Flags().Int64Var(&conversationID, "conversation", 0, "re-ingest only this conversation ID")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "run deadline; expiry keeps the partial snapshot")
	return cmd
}

func runIngest(cmd *cobra.Command, configPath, account string, opts ingest.Options, timeout time.Duration) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	rawAccount, err := a.resolveAccount(account)
	if err != nil {
		return err
	}
	if opts.MaxConversations == 0 {
		opts.MaxConversations = a.cfg.Ingest.MaxConversations
	}
	if opts.MaxUnread == 0 {
		opts.MaxUnread = a.cfg.Ingest.MaxUnread
	}
	if opts.MaxRecent == 0 {
		opts.MaxRecent = a.cfg.Ingest.MaxRecent
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	res, err := a.login.EnsureAuthorized(ctx, rawAccount)
	if err != nil {
		return err
	}
	if res.Status != api.StatusAlreadyLoggedIn {
		return fmt.Errorf("%s is not logged in (%s), run: tgsnapctl login --account %s",
			res.AccountID, res.Status, res.AccountID)
	}

	_, report, err := a.ingest.Run(ctx, res.AccountID, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	kept, skipped := 0, 0
	for _, r := range report.Results {
		if r.Skipped {
			skipped++
		} else {
			kept++
		}
	}
	fmt.Fprintf(out, "snapshot %s written: %d conversations visited, %d kept, %d skipped\n",
		report.RunID, report.Visited, kept, skipped)
	if report.TruncatedByDeadline {
		fmt.Fprintln(out, "warning: deadline expired, snapshot is partial")
	}
	return nil
}
