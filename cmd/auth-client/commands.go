package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gizmette/auth-client/pkg/session"
)

func loginCmd() *cobra.Command {
	var (
		username string
		passkey  bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Establish a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passkey {
				// Needs a platform authenticator bridge, which this build
				// does not carry.
				return errors.New("passkey login is not available in the command line client")
			}

			manager, closeStore, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if username == "" {
				username, err = prompt(cmd, "Username: ")
				if err != nil {
					return oops.In("cli").Wrapf(err, "Failed to read the username")
				}
			}

			password := os.Getenv("AUTHCLIENT_PASSWORD")
			if password == "" {
				password, err = prompt(cmd, "Password: ")
				if err != nil {
					return oops.In("cli").Wrapf(err, "Failed to read the password")
				}
			}

			if !manager.Login(cmd.Context(), username, password, session.AuthTypeCode) {
				if reason := manager.State().LogoutReason; reason != "" {
					return errors.New(reason)
				}

				return errors.New("login failed")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", username)

			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when omitted)")
	cmd.Flags().BoolVar(&passkey, "passkey", false, "log in with a passkey instead of a password")

	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear stored credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, closeStore, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			manager.Logout(cmd.Context(), "")
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")

			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var printIDToken bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a live access token, refreshing it if needed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, closeStore, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			var value string
			if printIDToken {
				value = manager.GetIDToken(cmd.Context())
			} else {
				value = manager.GetAccessToken(cmd.Context())
			}
			if value == "" {
				if reason := manager.State().LogoutReason; reason != "" {
					return errors.New(reason)
				}

				return errors.New("not authenticated, run login first")
			}

			fmt.Fprintln(cmd.OutOrStdout(), value)

			return nil
		},
	}

	cmd.Flags().BoolVar(&printIDToken, "id", false, "print the id token instead of the access token")

	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the session state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, closeStore, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			state := manager.State()
			out := cmd.OutOrStdout()

			if !state.IsAuthenticated {
				fmt.Fprintln(out, "Not authenticated")
				if state.LogoutReason != "" {
					fmt.Fprintln(out, state.LogoutReason)
				}

				return nil
			}

			fmt.Fprintf(out, "Authenticated as %s (%s)\n", state.User.Username, state.User.UserID)
			fmt.Fprintf(out, "Authentication type: %s\n", state.AuthenticationType)

			return nil
		},
	}
}

func prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), label)

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(line), nil
}
