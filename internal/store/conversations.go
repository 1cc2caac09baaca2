// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kmarwood/ollamaweb/internal/model"
)

// ============================================================================
// CONVERSATIONS
// ============================================================================

// CreateConversation inserts c. The caller supplies the ID and
// timestamps (model.NewConversation fills these in).
func (s *Store) CreateConversation(c model.Conversation) error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty conversation id", ErrInvalidInput)
	}
	_, err := s.db.Exec(
		`INSERT INTO conversations (id, title, model, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Model, c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation returns the conversation with the given ID, or
// ErrNotFound.
func (s *Store) GetConversation(id string) (model.Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, title, model, created_at, updated_at
		 FROM conversations WHERE id = ?`, id)

	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Conversation{}, fmt.Errorf("conversation %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Conversation{}, fmt.Errorf("query conversation: %w", err)
	}
	return c, nil
}

// ListConversations returns all conversations, most recently updated
// first.
func (s *Store) ListConversations() ([]model.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT id, title, model, created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TouchConversation bumps the conversation's updated_at to now,
// optionally retitling it. Pass title="" to keep the existing title.
func (s *Store) TouchConversation(id, title string) error {
	var (
		res sql.Result
		err error
	)
	now := time.Now().UnixNano()
	if title == "" {
		res, err = s.db.Exec(
			`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, id)
	} else {
		res, err = s.db.Exec(
			`UPDATE conversations SET updated_at = ?, title = ? WHERE id = ?`,
			now, title, id)
	}
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return requireRow(res, id)
}

// DeleteConversation removes the conversation and all its messages.
func (s *Store) DeleteConversation(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	// Explicit cascade; FK cascade also covers this but an explicit
	// delete keeps behavior identical when pragmas are off.
	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (model.Conversation, error) {
	var (
		c                  model.Conversation
		createdAt, updated int64
	)
	if err := row.Scan(&c.ID, &c.Title, &c.Model, &createdAt, &updated); err != nil {
		return model.Conversation{}, err
	}
	c.CreatedAt = time.Unix(0, createdAt)
	c.UpdatedAt = time.Unix(0, updated)
	return c, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("conversation %q: %w", id, ErrNotFound)
	}
	return nil
}
