// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed catalog/shellcheck-rules.yaml
var embeddedCatalog []byte

// ErrInvalidCatalog is wrapped by catalog decoding failures.
var ErrInvalidCatalog = errors.New("invalid rule catalog")

var validate = validator.New()

// Rule describes one catalog entry.
type Rule struct {
	Key                   string `yaml:"key" json:"key" validate:"required"`
	InternalKey           string `yaml:"internal_key" json:"internalKey" validate:"required"`
	Name                  string `yaml:"name" json:"name" validate:"required"`
	Severity              string `yaml:"severity" json:"severity" validate:"oneof=BLOCKER CRITICAL MAJOR MINOR INFO"`
	Type                  string `yaml:"type" json:"type" validate:"oneof=BUG CODE_SMELL VULNERABILITY"`
	Tag                   string `yaml:"tag" json:"tag"`
	Status                string `yaml:"status" json:"status" validate:"oneof=READY BETA DEPRECATED"`
	Cardinality           string `yaml:"cardinality" json:"cardinality" validate:"oneof=SINGLE MULTIPLE"`
	RemediationFunction   string `yaml:"remediation_function" json:"remediationFunction"`
	RemediationBaseEffort string `yaml:"remediation_base_effort" json:"remediationBaseEffort"`
	Description           string `yaml:"description" json:"description"`
}

// Repository names the rule repository the catalog populates.
type Repository struct {
	Language string `yaml:"language" validate:"required"`
	Name     string `yaml:"name" validate:"required"`
}

type catalogFile struct {
	Repository Repository `yaml:"repository"`
	Rules      []Rule     `yaml:"rules" validate:"required,min=1,dive"`
}

// Catalog is the ordered, read-only set of known rules.
//
// # Thread Safety
//
// Immutable after LoadCatalog; safe for concurrent use.
type Catalog struct {
	repository Repository
	rules      []Rule
	byKey      map[string]int
}

// LoadCatalog decodes a YAML catalog.
//
// # Description
//
// Unknown fields, duplicate keys and enum values outside the documented
// sets are rejected with ErrInvalidCatalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	c := &Catalog{
		repository: f.Repository,
		rules:      f.Rules,
		byKey:      make(map[string]int, len(f.Rules)),
	}
	for i, r := range f.Rules {
		if _, dup := c.byKey[r.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate rule key %q", ErrInvalidCatalog, r.Key)
		}
		c.byKey[r.Key] = i
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog returns the embedded catalog, decoded once.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = LoadCatalog(bytes.NewReader(embeddedCatalog))
	})
	return defaultCatalog, defaultErr
}

// Repository returns the repository descriptor.
func (c *Catalog) Repository() Repository {
	return c.repository
}

// RepositoryKey returns the key rules of this catalog are scoped under.
func (c *Catalog) RepositoryKey() string {
	return RepositoryKey(c.repository.Language)
}

// Rules returns the rules in catalog order.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Get looks a rule up by key. Both "SC2086" and "ShellCheck.SC2086" work.
func (c *Catalog) Get(key string) (Rule, bool) {
	i, ok := c.byKey[CanonicalID(key)]
	if !ok {
		i, ok = c.byKey[key]
	}
	if !ok {
		return Rule{}, false
	}
	return c.rules[i], true
}

// Len returns the number of rules.
func (c *Catalog) Len() int {
	return len(c.rules)
}
