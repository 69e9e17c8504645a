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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	sendCalls   int
	failSends   int
	lastSendTxt string
	lastEditTxt string
	editErr     error
}

func (f *fakeTransport) Send(ctx context.Context, chatID, text string, keyboard Keyboard) (MessageID, error) {
	f.sendCalls++
	f.lastSendTxt = text
	if f.sendCalls <= f.failSends {
		return MessageID{}, &RateLimitError{RetryAfter: time.Millisecond}
	}
	return MessageID{ChatID: chatID, MessageID: "msg-1"}, nil
}

func (f *fakeTransport) Edit(ctx context.Context, id MessageID, text string, keyboard Keyboard) error {
	f.lastEditTxt = text
	return f.editErr
}

func (f *fakeTransport) PollUpdates(ctx context.Context) ([]Update, error) {
	return nil, nil
}

func (f *fakeTransport) AckUpdate(ctx context.Context, id string, text string) error {
	return nil
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffFactor: 2}
}

func TestSend_BalancesMarkupBeforeSending(t *testing.T) {
	ft := &fakeTransport{}
	c := New(ft, fastRetry())

	_, err := c.Send(context.Background(), "chat1", "**bold and `code", nil)
	require.NoError(t, err)
	assert.Equal(t, "**bold and `code`**", ft.lastSendTxt)
}

func TestSend_RetriesOnRateLimitThenSucceeds(t *testing.T) {
	ft := &fakeTransport{failSends: 2}
	c := New(ft, fastRetry())

	id, err := c.Send(context.Background(), "chat1", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id.MessageID)
	assert.Equal(t, 3, ft.sendCalls)
}

func TestSend_GivesUpAfterMaxAttempts(t *testing.T) {
	ft := &fakeTransport{failSends: 100}
	c := New(ft, RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffFactor: 2})

	_, err := c.Send(context.Background(), "chat1", "hello", nil)
	require.Error(t, err)
	var rle *RateLimitError
	assert.ErrorAs(t, err, &rle)
	assert.Equal(t, 3, ft.sendCalls)
}

func TestSend_NonRateLimitErrorIsNotRetried(t *testing.T) {
	boom := errors.New("boom")
	ft := &fakeTransport{}
	c := New(&erroringTransport{err: boom}, fastRetry())
	_ = ft

	_, err := c.Send(context.Background(), "chat1", "hello", nil)
	assert.ErrorIs(t, err, boom)
}

type erroringTransport struct {
	fakeTransport
	err error
}

func (e *erroringTransport) Send(ctx context.Context, chatID, text string, keyboard Keyboard) (MessageID, error) {
	return MessageID{}, e.err
}

func TestEdit_BalancesMarkup(t *testing.T) {
	ft := &fakeTransport{}
	c := New(ft, fastRetry())

	err := c.Edit(context.Background(), MessageID{ChatID: "c", MessageID: "m"}, "_italic", nil)
	require.NoError(t, err)
	assert.Equal(t, "_italic_", ft.lastEditTxt)
}

func TestEdit_PropagatesMessageNotFound(t *testing.T) {
	ft := &fakeTransport{editErr: ErrMessageNotFound}
	c := New(ft, fastRetry())

	err := c.Edit(context.Background(), MessageID{ChatID: "c", MessageID: "m"}, "text", nil)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}
