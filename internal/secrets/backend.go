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

// Package secrets resolves the chat transport's bot token (and any other
// sensitive config values) through a priority-ordered chain of backends,
// trimmed from the teacher's internal/secrets package down to the env and
// file backends — this system has no keychain/vault dependency to manage
// since it runs headless and unattended (see DESIGN.md for why the
// teacher's keychain backend was dropped rather than wired).
package secrets

import (
	"context"
	"errors"
)

var (
	// ErrSecretNotFound is returned when a key is absent from a backend.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrBackendUnavailable is returned when no backend in the chain can
	// service a request.
	ErrBackendUnavailable = errors.New("secret backend unavailable")
)

// Backend is a single source of secret values, queried in priority order
// by a Resolver.
type Backend interface {
	// Name identifies the backend, e.g. "env" or "file".
	Name() string

	// Get retrieves key's value. Returns ErrSecretNotFound if absent.
	Get(ctx context.Context, key string) (string, error)

	// Available reports whether this backend can be queried in the
	// current environment.
	Available() bool

	// Priority ranks resolution order, highest first.
	Priority() int
}
