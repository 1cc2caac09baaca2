// Copyright (c) 2025 Kyle Marwood
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the core domain types shared by the store, the
// HTTP server, and the UI: conversations, messages, model catalog
// records, settings, and the streaming frame format.
package model
