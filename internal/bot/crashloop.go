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
	"encoding/json"
	"log/slog"
	"os"
	"time"
)

// crashLoopWindow and crashLoopThreshold bound what counts as a crash loop:
// at least 5 starts inside a trailing 60s window. Grounded in spirit on the
// teacher's internal/controller/polltrigger metrics self-reporting (there
// built on an OpenTelemetry meter this system doesn't carry, per DESIGN.md —
// here reduced to a plain timestamp ring file since nothing consumes these
// numbers as Prometheus series).
const (
	crashLoopWindow    = 60 * time.Second
	crashLoopThreshold = 5
)

// recordStartAndCheckCrashLoop appends now to the ring file beside path,
// prunes entries older than crashLoopWindow, and reports whether the
// pruned count has reached crashLoopThreshold.
func recordStartAndCheckCrashLoop(pidFilePath string, now time.Time, logger *slog.Logger) bool {
	ringPath := pidFilePath + ".restarts"

	var starts []time.Time
	if data, err := os.ReadFile(ringPath); err == nil {
		_ = json.Unmarshal(data, &starts)
	}

	cutoff := now.Add(-crashLoopWindow)
	kept := starts[:0]
	for _, t := range starts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)

	if data, err := json.Marshal(kept); err == nil {
		if err := os.WriteFile(ringPath, data, 0o600); err != nil {
			logger.Warn("failed to persist crash-loop ring file", "path", ringPath, "error", err)
		}
	}

	return len(kept) >= crashLoopThreshold
}
