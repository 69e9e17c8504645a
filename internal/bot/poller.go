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
	"context"
	"os"
	"path/filepath"
	"time"
)

// ProgressPoller scans a directory at a fixed cadence (spec.md §4.2.1:
// "progress/ files are polled at a fixed cadence (~2s) and treated as
// overwrite-in-place signals, not discrete events" — unlike summaries and
// completions, a progress file's content can change many times per second
// so edge-triggered notifications would coalesce at the wrong layer).
type ProgressPoller struct {
	dir      string
	interval time.Duration
}

// NewProgressPoller builds a poller over dir.
func NewProgressPoller(dir string, interval time.Duration) *ProgressPoller {
	return &ProgressPoller{dir: dir, interval: interval}
}

// Poll blocks until ctx is done, calling onFiles with the current snapshot
// of .json file paths under dir every interval.
func (p *ProgressPoller) Poll(ctx context.Context, onFiles func([]string)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			onFiles(p.scan())
		}
	}
}

func (p *ProgressPoller) scan() []string {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(p.dir, entry.Name()))
	}
	return paths
}
