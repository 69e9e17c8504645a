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

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvBackendPriority is the highest priority so an operator can always
// override a file-backed secret at launch time.
const EnvBackendPriority = 100

const envSecretPrefix = "WRAPUP_SECRET_"

// EnvBackend resolves secrets from WRAPUP_SECRET_<KEY> environment
// variables, normalizing key to the shouting-snake-case form.
type EnvBackend struct{}

func NewEnvBackend() *EnvBackend { return &EnvBackend{} }

func (e *EnvBackend) Name() string { return "env" }

func (e *EnvBackend) Get(ctx context.Context, key string) (string, error) {
	envKey := normalizeKey(key)
	if value := os.Getenv(envKey); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s not set", ErrSecretNotFound, envKey)
}

func (e *EnvBackend) Available() bool { return true }

func (e *EnvBackend) Priority() int { return EnvBackendPriority }

// normalizeKey converts "chat/bot_token" to "WRAPUP_SECRET_CHAT_BOT_TOKEN".
func normalizeKey(key string) string {
	normalized := strings.ToUpper(strings.ReplaceAll(key, "/", "_"))
	return envSecretPrefix + normalized
}
