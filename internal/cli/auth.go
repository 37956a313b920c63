package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cloudvault/cloudvault-cli/internal/session"
)

// newSignupCmd creates the 'signup' command.
func newSignupCmd() *cobra.Command {
	var email, password, fullName string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a vault account and log in",
		Long: `Create a new account. Missing values are prompted for; the password is
read without echo.

Examples:
  cloudvault signup --email ada@example.com --name "Ada Lovelace"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := cmd.InOrStdin(), cmd.ErrOrStderr()
			var err error
			if email, err = promptIfEmpty(in, out, email, "Email: "); err != nil {
				return err
			}
			if fullName == "" {
				if fullName, err = readLineDefault(in, out, "Full name", ""); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = readPassword(in, out, "Password: "); err != nil {
					return err
				}
			}

			return withApp(func(ctx context.Context, a *app) error {
				snap, err := a.session.Signup(ctx, email, password, fullName)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account created. Logged in as %s\n", snap.User.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted when omitted)")
	cmd.Flags().StringVarP(&fullName, "name", "n", "", "Full name")
	return cmd
}

// newLoginCmd creates the 'login' command.
func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Long: `Log in to the vault. The token and user are stored in the local
state database so later commands don't need to log in again.

Examples:
  cloudvault login --email ada@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := cmd.InOrStdin(), cmd.ErrOrStderr()
			var err error
			if email, err = promptIfEmpty(in, out, email, "Email: "); err != nil {
				return err
			}
			if password == "" {
				if password, err = readPassword(in, out, "Password: "); err != nil {
					return err
				}
			}

			return withApp(func(ctx context.Context, a *app) error {
				snap, err := a.session.Login(ctx, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", snap.User.DisplayName())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted when omitted)")
	return cmd
}

// newLogoutCmd creates the 'logout' command.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Long:  `Remove the stored token and user. The server is not contacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				a.session.Logout()
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

// newWhoamiCmd creates the 'whoami' command.
func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user and storage quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				snap, err := a.requireSession(ctx)
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}
}

// newTokenCmd creates the 'token' command group.
func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the session token",
	}

	tokenCmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, a *app) error {
				if err := a.session.Refresh(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Token refreshed")
				return nil
			})
		},
	})

	return tokenCmd
}

func promptIfEmpty(in io.Reader, out io.Writer, value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	v, err := readLine(in, out, prompt)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", ErrEmptyInput
	}
	return v, nil
}

func printSession(w io.Writer, snap session.Snapshot) {
	u := snap.User
	fmt.Fprintf(w, "Name:    %s\n", u.DisplayName())
	fmt.Fprintf(w, "Email:   %s\n", u.Email)
	if u.UserID != "" {
		fmt.Fprintf(w, "User ID: %s\n", u.UserID)
	}
	if q := snap.Quota; q != nil {
		fmt.Fprintf(w, "Storage: %s of %s used (%.1f%%)\n",
			formatBytes(q.Used), formatBytes(q.Limit), q.Fraction()*100)
	}
}
