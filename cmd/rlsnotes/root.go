package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/naveenspark/rlsnotes/internal/config"
	"github.com/naveenspark/rlsnotes/internal/logging"
	"github.com/naveenspark/rlsnotes/internal/notes"
	"github.com/naveenspark/rlsnotes/internal/session"
	"github.com/naveenspark/rlsnotes/internal/tui"
	"github.com/naveenspark/rlsnotes/pkg/client"
)

// alertError carries a message shown to the user as-is, matching the
// alerts of the interactive view.
type alertError struct {
	msg string
}

func (e *alertError) Error() string {
	return e.msg
}

func alertf(action string, err error) error {
	return &alertError{msg: action + " failed: " + client.Reason(err)}
}

// cli holds the command tree and the state shared by its commands.
type cli struct {
	rootCmd *cobra.Command

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// Global flags
	configPath string
	url        string
	anonKey    string
	debug      bool

	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	c := &cli{in: in, out: out, errOut: errOut, logger: logging.Discard()}
	c.rootCmd = c.newRootCmd()
	return c
}

func (c *cli) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rlsnotes",
		Short: "Sign in and check that row-level security keeps your notes yours",
		Long: `rlsnotes signs in to a Supabase project and creates and lists notes
through the project's REST API. Run without a subcommand for the
interactive view.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTUI(cmd.Context())
		},
	}
	cmd.SetIn(c.in)
	cmd.SetOut(c.out)
	cmd.SetErr(c.errOut)

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ~/.rlsnotes/config.yaml)")
	cmd.PersistentFlags().StringVar(&c.url, "url", "", "project URL (overrides config)")
	cmd.PersistentFlags().StringVar(&c.anonKey, "anon-key", "", "project anon key (overrides config)")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "debug logging")

	cmd.AddCommand(c.newTUICmd())
	cmd.AddCommand(c.newSignUpCmd())
	cmd.AddCommand(c.newSignInCmd())
	cmd.AddCommand(c.newSignOutCmd())
	cmd.AddCommand(c.newWhoAmICmd())
	cmd.AddCommand(c.newNotesCmd())
	cmd.AddCommand(c.newDevServerCmd())
	cmd.AddCommand(c.newVersionCmd())
	return cmd
}

func (c *cli) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.url != "" {
		cfg.URL = c.url
	}
	if c.anonKey != "" {
		cfg.AnonKey = c.anonKey
	}
	level := cfg.Log.Level
	if c.debug {
		level = "debug"
	}
	logger, closer, err := logging.Open(cfg.Log.File, level)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	c.closer = closer
	return nil
}

// close releases the log file opened by initConfig.
func (c *cli) close() {
	if c.closer != nil {
		c.closer.Close() //nolint:errcheck
		c.closer = nil
	}
}

// services wires the API client, session manager and note service from
// the loaded config.
func (c *cli) services() (*session.Manager, *notes.Service, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, nil, err
	}
	api := client.New(c.cfg.URL, c.cfg.AnonKey, client.WithTimeout(c.cfg.Timeout))
	m := session.NewManager(api, session.NewStore(c.cfg.SessionFile), session.WithLogger(c.logger))
	svc := notes.NewService(m, c.cfg.Table, c.cfg.Columns, c.logger)
	return m, svc, nil
}

func (c *cli) newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive view (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTUI(cmd.Context())
		},
	}
}

func (c *cli) runTUI(ctx context.Context) error {
	m, svc, err := c.services()
	if err != nil {
		return err
	}
	return tui.Run(ctx, m, svc, c.logger)
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
