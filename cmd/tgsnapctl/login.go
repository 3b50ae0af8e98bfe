package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/aryanfhm/tgsnap/internal/api"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd() *cobra.Command {
	var (
		configPath string
		account    string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log a Telegram account in interactively",
		Long:  "Starts the login flow for an account: requests a verification code, prompts for it, and prompts for the 2FA password when the account has one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, configPath, account)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path")
	cmd.Flags().StringVarP(&account, "account", "a", "", "phone number (overrides config default)")
	return cmd
}

func runLogin(cmd *cobra.Command, configPath, account string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	phone := account
	if phone == "" {
		phone = a.cfg.DefaultAccount
	}
	if phone == "" {
		fmt.Fprint(out, "Phone number: ")
		phone, err = readLine(in)
		if err != nil {
			return err
		}
	}

	res, err := a.login.InitiateLogin(ctx, phone)
	if err != nil {
		return err
	}
	if res.Status == api.StatusAlreadyLoggedIn {
		fmt.Fprintf(out, "%s is already logged in\n", res.AccountID)
		return nil
	}

	for res.Status == api.StatusWaitingForCode {
		fmt.Fprint(out, "Verification code: ")
		code, rerr := readLine(in)
		if rerr != nil {
			return rerr
		}
		res, err = a.login.SubmitCode(ctx, phone, code)
		if res.Status == api.StatusWaitingForCode {
			fmt.Fprintf(out, "code rejected: %s\n", res.Error)
		}
	}

	for res.Status == api.StatusNeedPassword {
		fmt.Fprint(out, "Password: ")
		password, rerr := readPassword(in)
		fmt.Fprintln(out)
		if rerr != nil {
			return rerr
		}
		res, err = a.login.SubmitPassword(ctx, phone, password)
		if res.Status == api.StatusNeedPassword {
			fmt.Fprintf(out, "password rejected: %s\n", res.Error)
		}
	}

	if res.Status != api.StatusLoggedIn {
		if err != nil {
			return err
		}
		return fmt.Errorf("login failed: %s", res.Error)
	}
	fmt.Fprintf(out, "%s logged in\n", res.AccountID)
	return nil
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo when stdin is a terminal, falling back to
// a plain line read for piped input.
func readPassword(in *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(in)
}
