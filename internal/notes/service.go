// Package notes reads and writes the caller's notes through the session's
// API client.
package notes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/naveenspark/rlsnotes/internal/logging"
	"github.com/naveenspark/rlsnotes/pkg/client"
	"github.com/naveenspark/rlsnotes/pkg/domain"
)

// ClientSource yields an API client acting as the current session.
// *session.Manager satisfies it.
type ClientSource interface {
	Client(ctx context.Context) (*client.Client, error)
}

// Service creates and lists notes in one table.
type Service struct {
	source  ClientSource
	table   string
	columns string
	logger  *slog.Logger
}

// NewService creates a Service. Empty table and columns fall back to
// "notes" and domain.DefaultNoteColumns.
func NewService(source ClientSource, table, columns string, logger *slog.Logger) *Service {
	if table == "" {
		table = "notes"
	}
	if columns == "" {
		columns = domain.DefaultNoteColumns
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{source: source, table: table, columns: columns, logger: logger}
}

// Create inserts one note. The owner is left for the backend to fill in
// from the caller's token.
func (s *Service) Create(ctx context.Context, draft domain.NoteDraft) error {
	c, err := s.source.Client(ctx)
	if err != nil {
		return fmt.Errorf("notes.Create: %w", err)
	}
	if err := c.Insert(ctx, s.table, draft, nil); err != nil {
		s.logger.Warn("insert failed", "table", s.table, "error", err)
		return fmt.Errorf("notes.Create: %w", err)
	}
	return nil
}

// List returns the notes visible to the caller, highest id first.
func (s *Service) List(ctx context.Context) ([]domain.Note, error) {
	c, err := s.source.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("notes.List: %w", err)
	}
	notes, err := c.ListNotes(ctx, s.table, s.columns)
	if err != nil {
		s.logger.Warn("read failed", "table", s.table, "error", err)
		return nil, fmt.Errorf("notes.List: %w", err)
	}
	return notes, nil
}
