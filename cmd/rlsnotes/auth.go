package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const signedUpMessage = "Signed up! If email confirmation is ON, check your email."

// credentialFlags are shared by signup and signin.
type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "account email (or first argument)")
	cmd.Flags().StringVar(&f.password, "password", "", "account password (default: $RLSNOTES_PASSWORD, else prompt)")
}

// resolve fills in the email from args and the password from the
// environment or a prompt on in.
func (f *credentialFlags) resolve(args []string, in io.Reader, out io.Writer) (string, string, error) {
	email := f.email
	if email == "" && len(args) > 0 {
		email = args[0]
	}
	password := f.password
	if password == "" {
		password = os.Getenv("RLSNOTES_PASSWORD")
	}
	if password == "" {
		fmt.Fprint(out, "Password: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprintln(out)
		password = strings.TrimRight(line, "\r\n")
	}
	return email, password, nil
}

func (c *cli) newSignUpCmd() *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "signup [email]",
		Short: "Create an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := c.services()
			if err != nil {
				return err
			}
			email, password, err := flags.resolve(args, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if _, err := m.SignUp(cmd.Context(), email, password); err != nil {
				c.logger.Warn("sign up failed", "err", err)
				return alertf("Sign up", err)
			}
			c.printf("%s\n", signedUpMessage)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) newSignInCmd() *cobra.Command {
	var flags credentialFlags
	cmd := &cobra.Command{
		Use:   "signin [email]",
		Short: "Sign in and store the session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := c.services()
			if err != nil {
				return err
			}
			email, password, err := flags.resolve(args, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := m.SignIn(cmd.Context(), email, password); err != nil {
				c.logger.Warn("sign in failed", "err", err)
				return alertf("Sign in", err)
			}
			c.printf("Signed in as %s\n", strings.ToLower(strings.TrimSpace(email)))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) newSignOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "End the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := c.services()
			if err != nil {
				return err
			}
			if err := m.SignOut(cmd.Context()); err != nil {
				c.logger.Warn("sign out failed", "err", err)
				return alertf("Sign out", err)
			}
			c.printf("Signed out.\n")
			return nil
		},
	}
}

func (c *cli) newWhoAmICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := c.services()
			if err != nil {
				return err
			}
			s, err := m.GetSession(cmd.Context())
			if err != nil {
				return alertf("Session restore", err)
			}
			if s == nil {
				c.printf("Not signed in. Run: rlsnotes signin <email>\n")
				return nil
			}
			c.printf("email:   %s\nuser_id: %s\nexpires: %s\n",
				s.User.Email, s.UserID(), s.ExpiresAt.Local().Format(time.DateTime))
			return nil
		},
	}
}
