package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/naveenspark/rlsnotes/pkg/domain"
)

// Order is a PostgREST ordering term.
type Order struct {
	Column    string
	Ascending bool
}

func (o Order) String() string {
	dir := "desc"
	if o.Ascending {
		dir = "asc"
	}
	return o.Column + "." + dir
}

// SelectQuery describes a PostgREST read.
type SelectQuery struct {
	// Columns is a comma-separated column list; empty selects all.
	Columns string
	Order   []Order
	Limit   int
}

func (q SelectQuery) values() url.Values {
	params := url.Values{}
	cols := q.Columns
	if cols == "" {
		cols = "*"
	}
	params.Set("select", cols)
	if len(q.Order) > 0 {
		terms := make([]string, len(q.Order))
		for i, o := range q.Order {
			terms[i] = o.String()
		}
		params.Set("order", strings.Join(terms, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", fmt.Sprint(q.Limit))
	}
	return params
}

// Select reads the rows of table visible to the caller into out.
func (c *Client) Select(ctx context.Context, table string, q SelectQuery, out any) error {
	path := "/rest/v1/" + url.PathEscape(table) + "?" + q.values().Encode()
	if err := c.get(ctx, path, out); err != nil {
		return fmt.Errorf("client.Select: %w", err)
	}
	return nil
}

// Insert creates rows in table. When out is non-nil the created rows are
// returned into it; otherwise the backend is asked for a minimal response.
func (c *Client) Insert(ctx context.Context, table string, rows any, out any) error {
	prefer := "return=minimal"
	if out != nil {
		prefer = "return=representation"
	}
	header := http.Header{"Prefer": []string{prefer}}
	if err := c.doRequest(ctx, http.MethodPost, "/rest/v1/"+url.PathEscape(table), rows, header, out); err != nil {
		return fmt.Errorf("client.Insert: %w", err)
	}
	return nil
}

// ListNotes returns the notes visible to the caller, newest id first.
func (c *Client) ListNotes(ctx context.Context, table, columns string) ([]domain.Note, error) {
	notes := []domain.Note{}
	q := SelectQuery{
		Columns: columns,
		Order:   []Order{{Column: "id"}},
	}
	if err := c.Select(ctx, table, q, &notes); err != nil {
		return nil, fmt.Errorf("client.ListNotes: %w", err)
	}
	return notes, nil
}

// InsertNotes creates notes owned by the caller and returns the stored rows.
func (c *Client) InsertNotes(ctx context.Context, table string, drafts ...domain.NoteDraft) ([]domain.Note, error) {
	var created []domain.Note
	if err := c.Insert(ctx, table, drafts, &created); err != nil {
		return nil, fmt.Errorf("client.InsertNotes: %w", err)
	}
	return created, nil
}
