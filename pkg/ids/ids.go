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

// Package ids generates the sortable identifiers used across every artifact
// in one session's lifetime: the correlation ID (CID) and the workspace hash
// used as a filename-safe workspace tag.
package ids

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
)

// entropy is a package-level reader so callers don't each pay the cost of
// wiring one up. ulid.Monotonic would require shared state across goroutines
// we don't control (three separate processes), so plain crypto/rand entropy
// is used instead — CIDs only need to sort by their millisecond timestamp
// prefix, not be strictly monotonic within a single process.
var entropy io.Reader = rand.Reader

// NewCorrelationID returns a fresh 26-character Crockford-base32 correlation
// ID: a millisecond-timestamp prefix followed by a random suffix, generated
// once by the Hook and propagated unchanged through every subsequent file
// and event of the session.
func NewCorrelationID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// WorkspaceHash returns the 8-character filename-safe workspace tag for the
// given absolute workspace path. It is not a security boundary: collisions
// are tolerated because the workspace path is always also carried in the
// JSON payload of any artifact that names it.
func WorkspaceHash(workspacePath string) string {
	abs := filepath.Clean(workspacePath)
	h := fnv.New64a()
	_, _ = h.Write([]byte(abs))
	sum := h.Sum64()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], sum)
	enc := ulid.Encoding
	// Re-encode the 8 raw hash bytes through the same Crockford base32
	// alphabet ULIDs use, then take a fixed-width 8-character prefix so the
	// tag reads as a sibling of the CID rather than a different ID shape.
	encoded := encodeCrockford(buf[:], enc)
	return encoded[:8]
}

// encodeCrockford base32-encodes data using the given alphabet (ULID's
// Crockford variant), without padding.
func encodeCrockford(data []byte, alphabet string) string {
	// 8 bytes -> ceil(64/5) = 13 symbols of 5 bits each (last symbol padded
	// with zero bits); we only ever take a prefix so the padding is benign.
	var bits uint64
	var nbits uint
	out := make([]byte, 0, 13)
	for _, b := range data {
		bits = (bits << 8) | uint64(b)
		nbits += 8
		for nbits >= 5 {
			nbits -= 5
			idx := (bits >> nbits) & 0x1F
			out = append(out, alphabet[idx])
		}
	}
	if nbits > 0 {
		idx := (bits << (5 - nbits)) & 0x1F
		out = append(out, alphabet[idx])
	}
	for len(out) < 13 {
		out = append(out, alphabet[0])
	}
	return string(out)
}

// CallbackKey derives a short opaque key for a chat inline-button callback
// payload: a truncated hash of the stable identity (session, workspace,
// workflow) plus a small random tail, so repeated callbacks for the same
// button during the same session don't collide even if generated close
// together.
func CallbackKey(sessionID, workspaceID, workflowID string) (string, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sessionID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(workspaceID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(workflowID))
	sum := h.Sum64()

	var tail [3]byte
	if _, err := io.ReadFull(rand.Reader, tail[:]); err != nil {
		return "", fmt.Errorf("generating callback key entropy: %w", err)
	}

	var buf [11]byte
	binary.BigEndian.PutUint64(buf[:8], sum)
	copy(buf[8:], tail[:])
	return encodeCrockford(buf[:], ulid.Encoding)[:16], nil
}
