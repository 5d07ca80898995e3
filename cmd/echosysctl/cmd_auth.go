package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/echosysai/echosys-go/internal/session"
)

func init() {
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().String("email", "", "account email (required)")
	loginCmd.Flags().String("password", "", "account password (required)")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	registerCmd.Flags().String("email", "", "account email")
	registerCmd.Flags().String("password", "", "account password")
	registerCmd.Flags().Bool("demo", false, "register a throwaway demo account")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate and store the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		api, err := newAPI()
		if err != nil {
			return err
		}
		resp, err := api.Login(cmd.Context(), email, password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Logged in as %s.\n", resp.User.Email)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and store the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		demo, _ := cmd.Flags().GetBool("demo")

		api, err := newAPI()
		if err != nil {
			return err
		}

		if demo {
			resp, err := api.RegisterDemo(cmd.Context())
			if err != nil {
				return fmt.Errorf("register demo account: %w", err)
			}
			fmt.Fprintf(os.Stdout, "Registered demo account %s.\n", resp.User.Email)
			return nil
		}

		if email == "" || password == "" {
			return fmt.Errorf("either --demo or both --email and --password are required")
		}
		resp, err := api.Register(cmd.Context(), email, password)
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Registered %s.\n", resp.User.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}
		if err := api.Logout(); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		fmt.Fprintln(os.Stdout, "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}

		token, ok := api.Session().Token()
		if !ok {
			fmt.Fprintln(os.Stdout, "Not logged in.")
			return nil
		}

		// The token payload is only decoded for display; the backend is the
		// sole authority on whether the session is still valid.
		if identity, ok := session.DecodeIdentity(token); ok {
			fmt.Fprintf(os.Stdout, "Logged in as %s.\n", identity.Email)
			return nil
		}
		if email, ok := api.Session().Email(); ok {
			fmt.Fprintf(os.Stdout, "Logged in as %s.\n", email)
			return nil
		}
		fmt.Fprintln(os.Stdout, "Logged in (identity unknown).")
		return nil
	},
}
