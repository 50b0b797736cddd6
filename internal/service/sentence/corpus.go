package sentence

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Corpus is a static list of fallback practice sentences, one per line.
// Blank lines and lines starting with '#' are ignored.
type Corpus struct {
	path string

	mu    sync.RWMutex
	lines []string
}

// NewCorpus creates an in-memory corpus.
func NewCorpus(lines ...string) *Corpus {
	return &Corpus{lines: cleanLines(lines)}
}

// LoadCorpus reads a corpus file.
func LoadCorpus(path string) (*Corpus, error) {
	c := &Corpus{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the corpus file. On error the previous contents are kept.
func (c *Corpus) Reload() error {
	if c.path == "" {
		return nil
	}
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("open corpus %q: %w", c.path, err)
	}
	defer f.Close()

	var raw []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		raw = append(raw, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read corpus %q: %w", c.path, err)
	}

	lines := cleanLines(raw)
	c.mu.Lock()
	c.lines = lines
	c.mu.Unlock()
	return nil
}

// Random returns a uniformly chosen sentence, or false if the corpus is empty.
func (c *Corpus) Random() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.lines) == 0 {
		return "", false
	}
	return c.lines[rand.IntN(len(c.lines))], true
}

// Len returns the number of sentences.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines)
}

// Watch reloads the corpus whenever its file changes. It watches the parent
// directory so editors that replace the file are picked up. Blocks until
// ctx is done.
func (c *Corpus) Watch(ctx context.Context) error {
	if c.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", dir, err)
	}

	target := filepath.Clean(c.path)
	logger := log.With().Str("component", "corpus").Str("path", c.path).Logger()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if err := c.Reload(); err != nil {
					logger.Warn().Err(err).Msg("Corpus reload failed, keeping previous sentences")
					continue
				}
				logger.Info().Int("sentences", c.Len()).Msg("Corpus reloaded")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Corpus watcher error")
		}
	}
}

func cleanLines(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		out = append(out, l)
	}
	return out
}
