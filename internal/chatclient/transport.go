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

// Package chatclient abstracts the chat transport the Bot Coordinator
// talks to: sending and editing messages with inline keyboards, and
// long-polling for inbound updates (text commands and button callbacks).
// The interface is deliberately narrow — just what spec.md §4.2 needs —
// so a concrete transport can be swapped without touching the event loop.
package chatclient

import (
	"context"
	"errors"
	"time"
)

// ErrMessageNotFound is returned when editing a message identifier the
// transport no longer recognizes (e.g. deleted by the user).
var ErrMessageNotFound = errors.New("chat message not found")

// RateLimitError is returned by a Transport when the caller must back off.
// RetryAfter is the transport's own hint when present; zero means the
// wrapper should fall back to its own exponential backoff schedule.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "chat transport rate limited"
}

// Button is one inline-keyboard button. CallbackData is the opaque short
// key the Bot allocates (spec.md §4.2.2 step 5) — never the workflow ID or
// any other sensitive payload directly.
type Button struct {
	Label        string
	CallbackData string
}

// Keyboard is a grid of buttons, laid out two per row by the caller before
// being handed to a Transport (spec.md §4.2.2 step 3).
type Keyboard [][]Button

// Update is a single inbound event: either a button press or a plain
// message, never both.
type Update struct {
	ID           string
	ChatID       string
	CallbackData string
	Text         string
}

// MessageID identifies a previously sent message for later edits.
type MessageID struct {
	ChatID    string
	MessageID string
}

// Transport is the narrow surface the Bot depends on.
type Transport interface {
	// Send posts text with an optional keyboard and returns the new
	// message's identifier.
	Send(ctx context.Context, chatID, text string, keyboard Keyboard) (MessageID, error)

	// Edit replaces the text and keyboard of a previously sent message.
	Edit(ctx context.Context, id MessageID, text string, keyboard Keyboard) error

	// PollUpdates blocks until updates are available, the transport's own
	// long-poll window ends, or ctx is done, returning as many as are
	// ready; when the window ends with nothing to deliver it returns an
	// empty slice.
	PollUpdates(ctx context.Context) ([]Update, error)

	// AckUpdate answers a callback update. text, if non-empty, is shown to
	// the user as an ephemeral toast (spec.md §4.2.3 step 1, the "expired,
	// rerun the session" notice). It does not affect redelivery:
	// HTTPTransport.PollUpdates advances its own offset past every update
	// it returns.
	AckUpdate(ctx context.Context, id string, text string) error
}
