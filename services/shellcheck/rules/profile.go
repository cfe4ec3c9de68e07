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
	"errors"
	"fmt"
)

// DefaultProfileName names the built-in profile that activates every
// catalog rule.
const DefaultProfileName = "ShellCheck way"

// ErrUnknownRule is returned when a profile adjustment names a rule the
// catalog does not define.
var ErrUnknownRule = errors.New("unknown rule")

// ActiveRule is a rule enabled for the current analysis.
type ActiveRule struct {
	Key      RuleKey
	Name     string
	Severity string
}

// ActiveRules is the per-run lookup of enabled rules.
//
// Find returns false for rules that are unknown or deactivated; the two
// cases are indistinguishable.
type ActiveRules interface {
	Find(key RuleKey) (ActiveRule, bool)
}

// Profile is an immutable set of active rules.
//
// # Thread Safety
//
// Safe for concurrent use.
type Profile struct {
	name    string
	catalog *Catalog
	order   []RuleKey
	active  map[RuleKey]ActiveRule
}

var _ ActiveRules = (*Profile)(nil)

// DefaultProfile activates every rule of c.
func DefaultProfile(c *Catalog) *Profile {
	p := &Profile{
		name:    DefaultProfileName,
		catalog: c,
		active:  make(map[RuleKey]ActiveRule, c.Len()),
	}
	for _, r := range c.rules {
		p.add(c, r)
	}
	return p
}

func (p *Profile) add(c *Catalog, r Rule) {
	key := RuleKey{Repository: c.RepositoryKey(), Rule: r.Key}
	p.order = append(p.order, key)
	p.active[key] = ActiveRule{Key: key, Name: r.Name, Severity: r.Severity}
}

// Narrow derives a profile from p.
//
// # Description
//
// When enabled is non-empty only those rules stay active. Rules in
// disabled are then removed. Ids may be given with or without the
// "ShellCheck." prefix. An id the catalog does not know fails with
// ErrUnknownRule.
func (p *Profile) Narrow(enabled, disabled []string) (*Profile, error) {
	keep := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		r, ok := p.catalog.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRule, id)
		}
		keep[r.Key] = true
	}
	drop := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		r, ok := p.catalog.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRule, id)
		}
		drop[r.Key] = true
	}

	out := &Profile{
		name:    p.name,
		catalog: p.catalog,
		active:  make(map[RuleKey]ActiveRule, len(p.order)),
	}
	for _, key := range p.order {
		if len(keep) > 0 && !keep[key.Rule] {
			continue
		}
		if drop[key.Rule] {
			continue
		}
		out.order = append(out.order, key)
		out.active[key] = p.active[key]
	}
	return out, nil
}

// Name returns the profile name.
func (p *Profile) Name() string {
	return p.name
}

// Find implements ActiveRules.
func (p *Profile) Find(key RuleKey) (ActiveRule, bool) {
	r, ok := p.active[key]
	return r, ok
}

// Len returns the number of active rules.
func (p *Profile) Len() int {
	return len(p.order)
}

// Active returns the active rules in catalog order.
func (p *Profile) Active() []ActiveRule {
	out := make([]ActiveRule, 0, len(p.order))
	for _, k := range p.order {
		out = append(out, p.active[k])
	}
	return out
}
