// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors provides thin wrapping helpers and a small set of typed
// sentinel errors shared across the hook, bot, and orchestrator.
package errors

import (
	"errors"
	"fmt"
)

// Wrap creates a new error that wraps err with additional context.
// If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf creates a new error that wraps err with formatted context.
// If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target's type.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// New is a convenience re-export of the standard library's errors.New.
func New(text string) error { return errors.New(text) }

// Sentinel errors matched with errors.Is across component boundaries.
var (
	// ErrNotFound is returned when a keyed lookup (callback key, message
	// identifier, registry entry) has no matching entry.
	ErrNotFound = errors.New("not found")

	// ErrSchemaInvalid is returned when a state file fails required-field
	// validation on read.
	ErrSchemaInvalid = errors.New("schema invalid")

	// ErrStale is returned when an owned resource (pidfile, callback) is
	// present but no longer valid and must be atomically replaced.
	ErrStale = errors.New("stale")
)
