// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ruleset loads the scoring and gating configuration: embedded
// defaults first, an optional file override on top. Loaded once at
// process start; never mutated mid-request.
package ruleset

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/analysis/gate"
	"github.com/ClarionAI/clarion/services/ruleset/defaults"
)

// SupportedSchemaMajor is the config schema major version this build
// understands. A file with a different major is rejected outright.
const SupportedSchemaMajor = "v1"

var rulesValidate = validator.New()

// ValidatorSettings controls the optional second-opinion pass.
type ValidatorSettings struct {
	Enabled        bool `yaml:"enabled"`
	TimeoutSeconds int  `yaml:"timeout_seconds" validate:"gte=1,lte=120"`
}

// Rules is the full rule configuration document.
type Rules struct {
	SchemaVersion string `yaml:"schema_version" validate:"required"`

	// Threshold is the gate acceptance threshold.
	Threshold float64 `yaml:"threshold" validate:"gt=0,lt=1"`

	// FeedbackWeight scales the learned-feedback scoring stage.
	FeedbackWeight float64 `yaml:"feedback_weight" validate:"gte=0,lte=1"`

	// BaseOverrides replaces built-in per-kind base scores.
	BaseOverrides map[detect.Kind]float64 `yaml:"base_overrides" validate:"dive,gte=0,lte=1"`

	// SeverityOverrides pins kinds to a severity band.
	SeverityOverrides map[detect.Kind]gate.Severity `yaml:"severity_overrides" validate:"dive,oneof=low medium high"`

	Validator ValidatorSettings `yaml:"validator"`
}

// Load parses the embedded defaults. It cannot fail at runtime unless
// the build itself shipped a broken file, so callers treat an error here
// as fatal.
func Load() (*Rules, error) {
	return parse(defaults.DefaultRules)
}

// LoadFile parses the embedded defaults and then applies the YAML file
// at path on top. Fields absent from the file keep their default values.
func LoadFile(path string) (*Rules, error) {
	rules, err := Load()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, rules); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	if err := check(rules); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rules, nil
}

func parse(raw []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedded rules: %w", err)
	}
	if err := check(&rules); err != nil {
		return nil, err
	}
	return &rules, nil
}

func check(rules *Rules) error {
	if !semver.IsValid(rules.SchemaVersion) {
		return fmt.Errorf("schema_version %q is not a valid semantic version", rules.SchemaVersion)
	}
	if major := semver.Major(rules.SchemaVersion); major != SupportedSchemaMajor {
		return fmt.Errorf("schema_version %s is not supported (want major %s)", rules.SchemaVersion, SupportedSchemaMajor)
	}
	if err := rulesValidate.Struct(rules); err != nil {
		return fmt.Errorf("rules failed validation: %w", err)
	}
	return nil
}
