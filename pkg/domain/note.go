package domain

import (
	"time"

	"github.com/google/uuid"
)

// Note is a row in the notes table. Title and Content are nullable.
type Note struct {
	ID        int64      `json:"id" yaml:"id"`
	UserID    uuid.UUID  `json:"user_id" yaml:"user_id"`
	Title     *string    `json:"title" yaml:"title"`
	Content   *string    `json:"content" yaml:"content"`
	CreatedAt *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// TitleOr returns the title, or fallback when it is null.
func (n Note) TitleOr(fallback string) string {
	if n.Title == nil {
		return fallback
	}
	return *n.Title
}

// ContentOr returns the content, or fallback when it is null.
func (n Note) ContentOr(fallback string) string {
	if n.Content == nil {
		return fallback
	}
	return *n.Content
}

// NoteDraft is the payload for a new note. The owner is never sent;
// the backend infers it from the caller's session.
type NoteDraft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DefaultNoteColumns is the column list requested when listing notes.
const DefaultNoteColumns = "id,user_id,title,content"

// SortedByIDDesc reports whether notes are ordered by descending id.
func SortedByIDDesc(notes []Note) bool {
	for i := 1; i < len(notes); i++ {
		if notes[i-1].ID < notes[i].ID {
			return false
		}
	}
	return true
}
