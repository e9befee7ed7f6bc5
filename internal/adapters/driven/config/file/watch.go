package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/memex/internal/logger"
)

// Watch reloads the prompt cache whenever a prompt file in the directory is
// written, created, renamed or removed. It returns once the watcher is
// running and stops when ctx is cancelled.
//
// onChange, when non-nil, is called with the prompt name after each reload.
func (s *PromptStore) Watch(ctx context.Context, onChange func(name string)) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, relevant := promptName(event)
				if !relevant {
					continue
				}
				s.Reload()
				logger.Debug("Prompt %s changed (%s), cache cleared", name, event.Op)
				if onChange != nil {
					onChange(name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Prompt watcher: %v", err)
			}
		}
	}()
	return nil
}

// promptName returns the prompt a file event refers to.
func promptName(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	base := filepath.Base(event.Name)
	if filepath.Ext(base) != ".txt" {
		return "", false
	}
	return strings.TrimSuffix(base, ".txt"), true
}
