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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPTransport implements Transport against a long-poll HTTP bot API: a
// sendMessage/editMessageText pair and a getUpdates long-poll endpoint,
// the shape shared by most chat bot APIs. The base URL already carries the
// bot token (e.g. "https://api.example.com/bot<token>").
type HTTPTransport struct {
	baseURL     string
	httpClient  *http.Client
	pollTimeout time.Duration
	offset      int64
}

// NewHTTPTransport builds an HTTPTransport. pollTimeout is the long-poll
// window asked of the server on every PollUpdates call.
func NewHTTPTransport(baseURL string, httpClient *http.Client, pollTimeout time.Duration) *HTTPTransport {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: pollTimeout + 10*time.Second}
	}
	return &HTTPTransport{
		baseURL:     baseURL,
		httpClient:  httpClient,
		pollTimeout: pollTimeout,
	}
}

type apiKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

func toAPIKeyboard(k Keyboard) [][]apiKeyboardButton {
	if len(k) == 0 {
		return nil
	}
	rows := make([][]apiKeyboardButton, len(k))
	for i, row := range k {
		btns := make([]apiKeyboardButton, len(row))
		for j, b := range row {
			btns[j] = apiKeyboardButton{Text: b.Label, CallbackData: b.CallbackData}
		}
		rows[i] = btns
	}
	return rows
}

type sendMessageResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID string `json:"message_id"`
	} `json:"result"`
}

func (t *HTTPTransport) Send(ctx context.Context, chatID, text string, keyboard Keyboard) (MessageID, error) {
	body := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if rows := toAPIKeyboard(keyboard); rows != nil {
		body["reply_markup"] = map[string]interface{}{"inline_keyboard": rows}
	}

	var resp sendMessageResponse
	if err := t.post(ctx, "sendMessage", body, &resp); err != nil {
		return MessageID{}, err
	}
	return MessageID{ChatID: chatID, MessageID: resp.Result.MessageID}, nil
}

func (t *HTTPTransport) Edit(ctx context.Context, id MessageID, text string, keyboard Keyboard) error {
	body := map[string]interface{}{
		"chat_id":    id.ChatID,
		"message_id": id.MessageID,
		"text":       text,
	}
	if rows := toAPIKeyboard(keyboard); rows != nil {
		body["reply_markup"] = map[string]interface{}{"inline_keyboard": rows}
	}

	var resp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := t.post(ctx, "editMessageText", body, &resp); err != nil {
		return err
	}
	if !resp.OK && resp.Description != "" {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, resp.Description)
	}
	return nil
}

type apiUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID string `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
	CallbackQuery *struct {
		ID      string `json:"id"`
		Data    string `json:"data"`
		Message struct {
			Chat struct {
				ID string `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

func (t *HTTPTransport) PollUpdates(ctx context.Context) ([]Update, error) {
	body := map[string]interface{}{
		"offset":  t.offset,
		"timeout": int(t.pollTimeout.Seconds()),
	}

	var resp struct {
		OK     bool        `json:"ok"`
		Result []apiUpdate `json:"result"`
	}
	if err := t.post(ctx, "getUpdates", body, &resp); err != nil {
		return nil, err
	}

	updates := make([]Update, 0, len(resp.Result))
	for _, u := range resp.Result {
		if u.UpdateID >= t.offset {
			t.offset = u.UpdateID + 1
		}
		switch {
		case u.CallbackQuery != nil:
			updates = append(updates, Update{
				ID:           u.CallbackQuery.ID,
				ChatID:       u.CallbackQuery.Message.Chat.ID,
				CallbackData: u.CallbackQuery.Data,
			})
		case u.Message != nil:
			updates = append(updates, Update{
				ID:     strconv.FormatInt(u.UpdateID, 10),
				ChatID: u.Message.Chat.ID,
				Text:   u.Message.Text,
			})
		}
	}
	return updates, nil
}

func (t *HTTPTransport) AckUpdate(ctx context.Context, id string, text string) error {
	body := map[string]interface{}{"callback_query_id": id}
	if text != "" {
		body["text"] = text
		body["show_alert"] = false
	}
	var resp struct {
		OK bool `json:"ok"`
	}
	return t.post(ctx, "answerCallbackQuery", body, &resp)
}

func (t *HTTPTransport) post(ctx context.Context, method string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}

	reqURL, err := url.JoinPath(t.baseURL, method)
	if err != nil {
		return fmt.Errorf("building %s URL: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode >= 500 {
		return &RateLimitError{}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned %d: %s", method, resp.StatusCode, string(data))
	}

	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
