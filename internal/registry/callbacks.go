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

package registry

import (
	"os"
	"path/filepath"
	"time"

	"github.com/opsrelay/wrapup/internal/atomicfile"
	"github.com/opsrelay/wrapup/internal/state"
)

// GCCallbacks removes every callback file under dir whose CreatedAt is
// older than maxAge, bounding the Bot's long-lived callback map from
// growing without limit across a long-running session (spec.md §5
// "periodic timers: ... callback-GC"). It returns the number of files
// removed. A file that fails to parse is treated as eligible for removal
// rather than aborting the sweep, since a corrupt callback entry can never
// be resolved by a button press anyway.
func GCCallbacks(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		var cb state.CallbackEntry
		if err := state.ReadJSON(path, &cb); err != nil || cb.CreatedAt.Before(cutoff) {
			if err := atomicfile.Unlink(path); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
