package tui

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/rlsnotes/internal/logging"
	"github.com/naveenspark/rlsnotes/internal/session"
)

// Run shows the note view until the user quits or ctx is done. It holds
// exactly one auth-state subscription for its lifetime and releases it on
// return.
func Run(ctx context.Context, auth *session.Manager, notes NoteService, logger *slog.Logger, opts ...tea.ProgramOption) error {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := auth.OnAuthStateChange()
	defer sub.Unsubscribe()

	programOpts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewApp(auth, notes), programOpts...)

	// Unsubscribe closes the channel, which ends this loop.
	go func() {
		for ev := range sub.Events() {
			p.Send(authEventMsg{event: ev})
		}
	}()

	go func() {
		if err := auth.Watch(ctx); err != nil {
			logger.Warn("session watcher stopped", "error", err)
		}
	}()

	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui.Run: %w", err)
	}
	return nil
}
