// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/dustin/go-humanize"
)

// ============================================================================
// MODEL CATALOG
// ============================================================================

// ModelRecord is a catalog entry for an installed (or previously seen)
// backend model.
type ModelRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Digest      string    `json:"digest,omitempty"`
	Family      string    `json:"family,omitempty"`
	IsAvailable bool      `json:"is_available"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// SizeHuman returns the model size formatted for display, e.g. "4.1 GB".
func (m ModelRecord) SizeHuman() string {
	if m.Size <= 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(m.Size))
}
