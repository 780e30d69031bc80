package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"holachat/internal/adapter/repository"
	"holachat/internal/infrastructure/httpclient"
	"holachat/internal/infrastructure/session"
)

var loginPassword string

// loginCmd exchanges credentials for a session and saves it
var loginCmd = &cobra.Command{
	Use:   "login <id>",
	Short: "Log in and save the session",
	Long: `Log in with a user id and password. The password is read from
--password or, when omitted, from the first line of standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := session.NewFileStore(cfg.SessionFile).Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "account password")
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	client := httpclient.New(cfg.APIURL, nil, cfg.RequestTimeout)
	sess, err := repository.NewRestAuthRepository(client).Login(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}

	if err := session.NewFileStore(cfg.SessionFile).Save(sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s).\n", sess.Name, sess.ID)
	return nil
}
