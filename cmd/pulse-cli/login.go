package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginPassword string
)

var errInvalidCredentials = errors.New("Invalid username or password")

// loginCmd checks credentials against the backend
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check credentials against the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginUsername == "" || loginPassword == "" {
			line := liner.NewLiner()
			line.SetCtrlCAborts(true)
			var err error
			if loginUsername == "" {
				loginUsername, err = line.Prompt("username: ")
			}
			if err == nil && loginPassword == "" {
				loginPassword, err = line.PasswordPrompt("password: ")
			}
			line.Close()
			if err != nil {
				return err
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Analytics.RequestTimeout)
		defer cancel()
		if err := login(ctx, newClient(), loginUsername, loginPassword); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Login successful")
		return nil
	},
}

type loginer interface {
	Login(ctx context.Context, username, password string) (bool, error)
}

func login(ctx context.Context, accounts loginer, username, password string) error {
	ok, err := accounts.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if !ok {
		return errInvalidCredentials
	}
	return nil
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Account email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password (prompted when omitted)")
}
