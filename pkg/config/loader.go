// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every decoding or validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var (
	validate   *validator.Validate
	ruleIDExpr = regexp.MustCompile(`^(ShellCheck\.)?SC[0-9]{4}$`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("regex", validateRegex)
	_ = validate.RegisterValidation("ruleid", validateRuleID)
	_ = validate.RegisterValidation("glob", validateGlob)
}

func validateRegex(fl validator.FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}

func validateRuleID(fl validator.FieldLevel) bool {
	return ruleIDExpr.MatchString(fl.Field().String())
}

func validateGlob(fl validator.FieldLevel) bool {
	return doublestar.ValidatePattern(fl.Field().String())
}

// Decode reads YAML from r on top of DefaultConfig and validates it.
//
// # Description
//
// Unknown keys are rejected so that typos surface instead of being
// silently ignored. An empty document yields the defaults.
func Decode(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the configuration at path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadForProject loads explicit when set, otherwise {root}/.shellsensor.yaml
// when it exists, otherwise the defaults.
func LoadForProject(root, explicit string) (Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	candidate := filepath.Join(root, FileName)
	if _, err := os.Stat(candidate); err == nil {
		return Load(candidate)
	}
	return Load("")
}

// Validate checks every field constraint.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
