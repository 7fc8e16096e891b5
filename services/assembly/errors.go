// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assembly

import "errors"

// Only malformed input surfaces as an error from RewriteBlock; every
// downstream failure is absorbed into the per-station breakdown.
var (
	// ErrNilContext indicates a nil context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrEmptySession indicates a request without a session id.
	ErrEmptySession = errors.New("session id must not be empty")

	// ErrEmptyBlock indicates a request without a block id.
	ErrEmptyBlock = errors.New("block id must not be empty")

	// ErrEmptyContent indicates a request with no text to rewrite.
	ErrEmptyContent = errors.New("block content must not be empty")

	// ErrUnknownBlockType indicates a block type outside the known set.
	ErrUnknownBlockType = errors.New("unknown block type")

	// ErrRewriteInFlight indicates a concurrent rewrite already holds
	// this (session, block). Duplicates are rejected, not queued.
	ErrRewriteInFlight = errors.New("a rewrite for this session and block is already in flight")
)
