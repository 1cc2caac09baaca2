// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"fmt"
	"time"

	"github.com/kmarwood/ollamaweb/internal/model"
)

// ============================================================================
// MESSAGES
// ============================================================================

// CreateMessage appends m to its conversation and bumps the
// conversation's updated_at. Fails with ErrNotFound when the
// conversation does not exist.
func (s *Store) CreateMessage(m model.Message) error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: role %q", ErrInvalidInput, m.Role)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UnixNano(), m.ConversationID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if err := requireRow(res, m.ConversationID); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO messages (id, conversation_id, role, content, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, string(m.Role), m.Content, m.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return tx.Commit()
}

// GetMessages returns all messages in a conversation in chronological
// order. Returns ErrNotFound when the conversation does not exist.
func (s *Store) GetMessages(conversationID string) ([]model.Message, error) {
	if _, err := s.GetConversation(conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, conversation_id, role, content, timestamp
		 FROM messages WHERE conversation_id = ? ORDER BY timestamp ASC, id ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var (
			m    model.Message
			role string
			ts   int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = model.Role(role)
		m.Timestamp = time.Unix(0, ts)
		out = append(out, m)
	}
	return out, rows.Err()
}
