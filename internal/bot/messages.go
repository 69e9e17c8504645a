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

package bot

import (
	"sync"

	"github.com/opsrelay/wrapup/internal/chatclient"
)

// sessionKey identifies the one chat message tracking a (session,
// workspace) pair throughout its summary → selection → progress →
// completion lifetime (spec.md §4.2.2 step 6, §4.2.5, §4.2.6).
type sessionKey struct {
	SessionID   string
	WorkspaceID string
}

// messageStore maps a (session_id, workspace_id) pair to the chat message
// identifier the Bot keeps editing in place. Unlike the rest of the Bot's
// state, which only the event loop goroutine mutates (spec.md §5 "All
// mutable shared state ... lives on the event loop and is only mutated
// from it"), messageStore guards its map with a mutex, so every method is
// safe for concurrent use.
type messageStore struct {
	mu   sync.Mutex
	byID map[sessionKey]chatclient.MessageID
}

func newMessageStore() *messageStore {
	return &messageStore{byID: make(map[sessionKey]chatclient.MessageID)}
}

func (s *messageStore) Put(sessionID, workspaceID string, id chatclient.MessageID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sessionKey{sessionID, workspaceID}] = id
}

func (s *messageStore) Get(sessionID, workspaceID string) (chatclient.MessageID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byID[sessionKey{sessionID, workspaceID}]
	return id, ok
}

func (s *messageStore) Delete(sessionID, workspaceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, sessionKey{sessionID, workspaceID})
}
