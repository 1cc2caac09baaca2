// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared across packages: rune-safe
// string truncation and atomic file writes.
package util
