package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/naveenspark/rlsnotes/internal/stub"
)

const defaultDevAnonKey = "rlsnotes-dev-anon-key"

type devServerFlags struct {
	addr                string
	dsn                 string
	jwtSecret           string
	requireConfirmation bool
}

func (c *cli) newDevServerCmd() *cobra.Command {
	var flags devServerFlags
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local backend with row-level security on the notes table",
		Long: `devserver serves the auth and REST endpoints the client uses, backed by
sqlite. Rows are filtered by the caller's user id, so two accounts never
see each other's notes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serveDev(ctx, flags)
		},
	}
	cmd.Flags().StringVar(&flags.addr, "addr", "127.0.0.1:54321", "listen address")
	cmd.Flags().StringVar(&flags.dsn, "db", "", "sqlite data source (default: in-memory)")
	cmd.Flags().StringVar(&flags.jwtSecret, "jwt-secret", "", "HS256 signing secret (default: built-in dev secret)")
	cmd.Flags().BoolVar(&flags.requireConfirmation, "require-confirmation", false, "require email confirmation before sign-in")
	return cmd
}

func (c *cli) serveDev(ctx context.Context, flags devServerFlags) error {
	anonKey := c.cfg.AnonKey
	if anonKey == "" {
		anonKey = defaultDevAnonKey
	}
	srv, err := stub.New(stub.Options{
		AnonKey:             anonKey,
		JWTSecret:           flags.jwtSecret,
		RequireConfirmation: flags.requireConfirmation,
		Table:               c.cfg.Table,
		DSN:                 flags.dsn,
		Logger:              c.logger,
	})
	if err != nil {
		return err
	}
	defer srv.Close() //nolint:errcheck

	ln, err := net.Listen("tcp", flags.addr)
	if err != nil {
		return fmt.Errorf("devserver: %w", err)
	}
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printBanner(c.out)
	c.printf("  listening on http://%s\n", ln.Addr())
	c.printf("  export RLSNOTES_URL=http://%s RLSNOTES_ANON_KEY=%s\n\n", ln.Addr(), anonKey)
	c.logger.Info("devserver started", "addr", ln.Addr().String(), "table", c.cfg.Table)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("devserver: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("devserver: shutdown: %w", err)
	}
	c.logger.Info("devserver stopped")
	return nil
}
