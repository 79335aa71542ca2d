// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history provides a local archive of completed exchanges.
//
// Every finished continuation can be recorded as one exchange (the user
// prompt and the committed assistant response). The archive is a local
// convenience for recall and search; the Sequence API server remains the
// authority on conversation state.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/strand/internal/sequence"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrClosed   = errors.New("history archive is closed")
	ErrNotFound = errors.New("exchange not found")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	client_id    TEXT NOT NULL,
	sequence_id  INTEGER NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	model        TEXT NOT NULL DEFAULT '',
	prompt       TEXT NOT NULL,
	response     TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exchanges_created_at ON exchanges(created_at);
CREATE INDEX IF NOT EXISTS idx_exchanges_sequence ON exchanges(sequence_id);
`

// =============================================================================
// TYPES
// =============================================================================

// Exchange is one archived prompt/response pair.
type Exchange struct {
	ID         int64
	ClientID   uuid.UUID
	SequenceID int64
	Title      string
	Model      string
	Prompt     string
	Response   string
	CreatedAt  time.Time
}

// Archive is the SQLite-backed exchange store.
type Archive struct {
	db *sql.DB
}

// =============================================================================
// OPEN / CLOSE
// =============================================================================

// Open opens (creating if necessary) the archive database at path.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close closes the archive and releases resources.
func (a *Archive) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// SaveExchange records one exchange and returns its row ID.
func (a *Archive) SaveExchange(ctx context.Context, ex Exchange) (int64, error) {
	if a.db == nil {
		return 0, ErrClosed
	}
	createdAt := ex.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := a.db.ExecContext(ctx, `
		INSERT INTO exchanges (client_id, sequence_id, title, model, prompt, response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ex.ClientID.String(), ex.SequenceID, ex.Title, ex.Model, ex.Prompt, ex.Response,
		createdAt.UTC().UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("failed to save exchange: %w", err)
	}
	return res.LastInsertId()
}

// SaveFromSequence archives the trailing user/assistant pair of a
// sequence. Sequences whose latest turn has no durable assistant response
// are skipped, reported as (0, nil).
func (a *Archive) SaveFromSequence(ctx context.Context, seq sequence.Sequence) (int64, error) {
	prompt, response, at, ok := trailingPair(seq)
	if !ok {
		return 0, nil
	}
	return a.SaveExchange(ctx, Exchange{
		ClientID:   seq.ClientID,
		SequenceID: seq.ServerID,
		Title:      seq.HumanDesc,
		Model:      seq.ModelID,
		Prompt:     prompt,
		Response:   response,
		CreatedAt:  at,
	})
}

// trailingPair walks backwards for the newest Stored assistant message
// and the Stored user message preceding it. Temporary messages are local
// artifacts and never archived.
func trailingPair(seq sequence.Sequence) (prompt, response string, at time.Time, ok bool) {
	msgs := seq.Messages
	i := len(msgs) - 1
	for ; i >= 0; i-- {
		st, isStored := msgs[i].(sequence.Stored)
		if !isStored {
			continue
		}
		if st.Role != sequence.RoleAssistant {
			return "", "", time.Time{}, false
		}
		response = st.Content
		at = st.CreatedAt
		break
	}
	if i < 0 {
		return "", "", time.Time{}, false
	}
	for i--; i >= 0; i-- {
		if st, isStored := msgs[i].(sequence.Stored); isStored {
			if st.Role == sequence.RoleUser {
				prompt = st.Content
			}
			// A bare continuation (assistant turn following another) has
			// no prompt of its own; archive it with an empty one.
			break
		}
	}
	return prompt, response, at, true
}

// Prune deletes exchanges older than the retention window and returns how
// many rows were removed. A zero or negative window is a no-op.
func (a *Archive) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if a.db == nil {
		return 0, ErrClosed
	}
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-retention).UTC().UnixMicro()

	res, err := a.db.ExecContext(ctx, `DELETE FROM exchanges WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune exchanges: %w", err)
	}
	return res.RowsAffected()
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Recent returns the newest exchanges, most recent first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	if a.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, client_id, sequence_id, title, model, prompt, response, created_at
		FROM exchanges
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	return scanExchanges(rows)
}

// Search returns exchanges whose title, prompt, or response contains the
// term, most recent first.
func (a *Archive) Search(ctx context.Context, term string, limit int) ([]Exchange, error) {
	if a.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + term + "%"

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, client_id, sequence_id, title, model, prompt, response, created_at
		FROM exchanges
		WHERE title LIKE ? OR prompt LIKE ? OR response LIKE ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search exchanges: %w", err)
	}
	defer rows.Close()

	return scanExchanges(rows)
}

// Get returns one exchange by row ID.
func (a *Archive) Get(ctx context.Context, id int64) (Exchange, error) {
	if a.db == nil {
		return Exchange{}, ErrClosed
	}

	row := a.db.QueryRowContext(ctx, `
		SELECT id, client_id, sequence_id, title, model, prompt, response, created_at
		FROM exchanges WHERE id = ?
	`, id)

	ex, err := scanExchange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Exchange{}, ErrNotFound
	}
	return ex, err
}

// =============================================================================
// ROW SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExchange(row rowScanner) (Exchange, error) {
	var (
		ex       Exchange
		clientID string
		createdA int64
	)
	if err := row.Scan(&ex.ID, &clientID, &ex.SequenceID, &ex.Title, &ex.Model,
		&ex.Prompt, &ex.Response, &createdA); err != nil {
		return Exchange{}, err
	}
	if id, err := uuid.Parse(clientID); err == nil {
		ex.ClientID = id
	}
	ex.CreatedAt = time.UnixMicro(createdA).UTC()
	return ex, nil
}

func scanExchanges(rows *sql.Rows) ([]Exchange, error) {
	var out []Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}
