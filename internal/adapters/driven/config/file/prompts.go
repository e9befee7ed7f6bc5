package file

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/memex/internal/core/ports/driven"
	"github.com/custodia-labs/memex/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

//go:embed defaults/*.txt defaults/README.md
var defaultsFS embed.FS

// promptArgs is the number of %s verbs each template is formatted with.
var promptArgs = map[string]int{
	driven.PromptSemanticSplit: 1,
	driven.PromptContextEnrich: 3,
}

// PromptStore serves prompt templates from <dir>/<name>.txt.
//
// The directory is seeded with the built-in templates on the first Load, so
// users have something to edit. A file that is missing, unreadable or has the
// wrong number of verbs falls back to the built-in template.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore returns a store rooted at dir, or ~/.memex/prompts when dir
// is empty. Nothing touches the disk until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".memex", "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// Load returns the template for name.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(s.seed)
	if s.seedErr != nil {
		logger.Debug("prompts: %v, using built-in %s", s.seedErr, name)
		return builtinPrompt(name)
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	tmpl, err := s.read(name)
	if err != nil {
		logger.Warn("prompts: %v, using built-in %s", err, name)
		return builtinPrompt(name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.cache[name]; ok {
		return existing, nil
	}
	s.cache[name] = tmpl
	return tmpl, nil
}

// Reload empties the cache.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// read loads and checks one template from disk.
func (s *PromptStore) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
	if err != nil {
		return "", err
	}
	tmpl := strings.TrimSpace(string(data))
	if want, known := promptArgs[name]; known {
		if got := countVerbs(tmpl); got != want {
			return "", fmt.Errorf("%s.txt has %d format verbs, want %d", name, got, want)
		}
	}
	return tmpl, nil
}

// seed copies every embedded default that does not exist yet.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}
	s.seedErr = fs.WalkDir(defaultsFS, "defaults", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		target := filepath.Join(s.dir, d.Name())
		if _, err := os.Stat(target); !errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		data, err := defaultsFS.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0600); err != nil {
			return fmt.Errorf("write default %s: %w", d.Name(), err)
		}
		return nil
	})
}

// builtinPrompt returns the embedded template for name.
func builtinPrompt(name string) (string, error) {
	data, err := defaultsFS.ReadFile("defaults/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	return strings.TrimSpace(string(data)), nil
}

// countVerbs counts fmt verbs, ignoring escaped percent signs.
func countVerbs(tmpl string) int {
	n := 0
	for i := 0; i < len(tmpl)-1; i++ {
		if tmpl[i] != '%' {
			continue
		}
		if tmpl[i+1] != '%' {
			n++
		}
		i++
	}
	return n
}
