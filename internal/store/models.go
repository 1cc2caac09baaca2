// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kmarwood/ollamaweb/internal/model"
)

// ============================================================================
// MODEL CATALOG
// ============================================================================

// UpsertModel inserts or updates a catalog entry keyed by model name.
// An existing record keeps its ID.
func (s *Store) UpsertModel(m model.ModelRecord) error {
	if m.Name == "" {
		return fmt.Errorf("%w: empty model name", ErrInvalidInput)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.ModifiedAt.IsZero() {
		m.ModifiedAt = time.Now()
	}

	_, err := s.db.Exec(
		`INSERT INTO models (id, name, size, digest, family, is_available, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			size = excluded.size,
			digest = excluded.digest,
			family = excluded.family,
			is_available = excluded.is_available,
			modified_at = excluded.modified_at`,
		m.ID, m.Name, m.Size, m.Digest, m.Family, boolToInt(m.IsAvailable),
		m.ModifiedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert model: %w", err)
	}
	return nil
}

// GetModel returns the catalog entry for name, or ErrNotFound.
func (s *Store) GetModel(name string) (model.ModelRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, name, size, digest, family, is_available, modified_at
		 FROM models WHERE name = ?`, name)

	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ModelRecord{}, fmt.Errorf("model %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return model.ModelRecord{}, fmt.Errorf("query model: %w", err)
	}
	return m, nil
}

// ListModels returns the full catalog sorted by name.
func (s *Store) ListModels() ([]model.ModelRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, name, size, digest, family, is_available, modified_at
		 FROM models ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query models: %w", err)
	}
	defer rows.Close()

	var out []model.ModelRecord
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteModel removes the catalog entry for name. Returns ErrNotFound
// when no such entry exists.
func (s *Store) DeleteModel(name string) error {
	res, err := s.db.Exec(`DELETE FROM models WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete model: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("model %q: %w", name, ErrNotFound)
	}
	return nil
}

// MarkModelsUnavailable flags every catalog entry NOT in names as
// unavailable. Used when reconciling against the live backend.
func (s *Store) MarkModelsUnavailable(names []string) error {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}

	existing, err := s.ListModels()
	if err != nil {
		return err
	}
	for _, m := range existing {
		if present[m.Name] || !m.IsAvailable {
			continue
		}
		if _, err := s.db.Exec(
			`UPDATE models SET is_available = 0 WHERE name = ?`, m.Name); err != nil {
			return fmt.Errorf("mark model unavailable: %w", err)
		}
	}
	return nil
}

func scanModel(row rowScanner) (model.ModelRecord, error) {
	var (
		m         model.ModelRecord
		available int
		modified  int64
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Size, &m.Digest, &m.Family,
		&available, &modified); err != nil {
		return model.ModelRecord{}, err
	}
	m.IsAvailable = available != 0
	m.ModifiedAt = time.Unix(0, modified)
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
