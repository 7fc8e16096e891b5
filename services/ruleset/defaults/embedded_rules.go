// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package defaults bakes the shipped rule configuration into the binary
// so a fresh install runs with sane thresholds and cannot lose its
// defaults to a missing config file.
package defaults

import (
	_ "embed"
)

// DefaultRules holds the raw bytes of default_rules.yaml, populated at
// compile time.
//
//go:embed default_rules.yaml
var DefaultRules []byte
