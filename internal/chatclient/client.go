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

package chatclient

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/opsrelay/wrapup/pkg/markup"
)

// sendRateLimit and editRateLimit bound the Client's own outbound pacing
// (spec.md §117: "the chat client is expected to expose its own internal
// rate limiter; when that limiter yields, the calling task suspends rather
// than spinning"). editRateLimit matches the ~6/s ceiling spec.md §4.2.5
// attributes to edits specifically, which are throttled far more tightly
// than sends by the transport itself.
const (
	sendRateLimit = rate.Limit(10)
	editRateLimit = rate.Limit(6)
)

// Client wraps a Transport with the outbound markup-safety net, a
// proactive token-bucket rate limiter, and the reactive rate-limit retry
// loop, so callers never have to remember to balance markup, pace their
// own calls, or handle RateLimitError themselves.
type Client struct {
	transport   Transport
	retry       RetryConfig
	sendLimiter *rate.Limiter
	editLimiter *rate.Limiter
}

// New builds a Client. A zero RetryConfig means DefaultRetryConfig().
func New(transport Transport, retry RetryConfig) *Client {
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryConfig()
	}
	return &Client{
		transport:   transport,
		retry:       retry,
		sendLimiter: rate.NewLimiter(sendRateLimit, 1),
		editLimiter: rate.NewLimiter(editRateLimit, 1),
	}
}

// Send balances text's markup, suspends until the send limiter admits the
// call, then sends with retry-on-rate-limit.
func (c *Client) Send(ctx context.Context, chatID, text string, keyboard Keyboard) (MessageID, error) {
	text = markup.Balance(text).Text
	if err := c.sendLimiter.Wait(ctx); err != nil {
		return MessageID{}, err
	}
	var id MessageID
	err := Do(ctx, c.retry, func(ctx context.Context) error {
		var sendErr error
		id, sendErr = c.transport.Send(ctx, chatID, text, keyboard)
		return sendErr
	})
	return id, err
}

// Edit balances text's markup, suspends until the (tighter) edit limiter
// admits the call, then edits a previously sent message with
// retry-on-rate-limit.
func (c *Client) Edit(ctx context.Context, id MessageID, text string, keyboard Keyboard) error {
	text = markup.Balance(text).Text
	if err := c.editLimiter.Wait(ctx); err != nil {
		return err
	}
	return Do(ctx, c.retry, func(ctx context.Context) error {
		return c.transport.Edit(ctx, id, text, keyboard)
	})
}

// PollUpdates delegates straight to the transport; long-polling has no
// useful retry semantics beyond the caller's own loop.
func (c *Client) PollUpdates(ctx context.Context) ([]Update, error) {
	return c.transport.PollUpdates(ctx)
}

// AckUpdate delegates straight to the transport.
func (c *Client) AckUpdate(ctx context.Context, id string, text string) error {
	return c.transport.AckUpdate(ctx, id, text)
}
