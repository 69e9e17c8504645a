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
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// FileEvent is one new-file notification from a watched directory
// (spec.md §4.2.1: "every new .json file in summaries/ or completions/ is
// enqueued for processing exactly once").
type FileEvent struct {
	Dir  string
	Path string
}

// DirWatcher watches summaries/ and completions/ for newly created .json
// files using native filesystem notifications. If fsnotify fails to start
// or a directory cannot be added, NewDirWatcher returns the error; there is
// no polling fallback for summaries/ and completions/ (the progress poller
// covers progress/ only), matching the teacher's filewatcher which has no
// polling fallback of its own.
//
// Grounded on the teacher's internal/controller/filewatcher.Watcher:
// same fsnotify.Op → event-type mapping, same buffered non-blocking
// event channel, same Start(ctx)/Stop()/Events() shape, narrowed to the
// two event types this system needs (create, rename-into-place).
type DirWatcher struct {
	fsw       *fsnotify.Watcher
	dirs      map[string]string // watched absolute dir -> label
	eventChan chan FileEvent
	logger    *slog.Logger
	seen      map[string]bool // per-directory dedup of already-enqueued filenames
	doneCh    chan struct{}
}

// NewDirWatcher watches each of dirs for new .json files.
func NewDirWatcher(dirs []string, logger *slog.Logger) (*DirWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &DirWatcher{
		fsw:       fsw,
		dirs:      make(map[string]string, len(dirs)),
		eventChan: make(chan FileEvent, 256),
		logger:    logger,
		seen:      make(map[string]bool),
		doneCh:    make(chan struct{}),
	}

	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		if err := fsw.Add(abs); err != nil {
			fsw.Close()
			return nil, err
		}
		w.dirs[abs] = abs
	}

	return w, nil
}

// Start begins watching in a background goroutine.
func (w *DirWatcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Stop releases the underlying fsnotify watcher.
func (w *DirWatcher) Stop() error {
	err := w.fsw.Close()
	<-w.doneCh
	return err
}

// Events returns the channel of newly observed files.
func (w *DirWatcher) Events() <-chan FileEvent {
	return w.eventChan
}

func (w *DirWatcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	defer close(w.eventChan)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *DirWatcher) handle(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	dir := filepath.Dir(event.Name)
	key := dir + "/" + filepath.Base(event.Name)
	if w.seen[key] {
		return
	}
	w.seen[key] = true

	select {
	case w.eventChan <- FileEvent{Dir: dir, Path: event.Name}:
	default:
		w.logger.Warn("watcher event channel full, dropping event", "path", event.Name)
	}
}

// Forget clears the dedup entry for path so a future file with the same
// name (unlikely given the opaque naming scheme, but possible under
// session-id reuse) isn't silently dropped. The Bot does not call it, so
// within one Bot process a given file name is delivered at most once.
func (w *DirWatcher) Forget(path string) {
	dir := filepath.Dir(path)
	delete(w.seen, dir+"/"+filepath.Base(path))
}
