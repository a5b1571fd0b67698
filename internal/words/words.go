// Package words supplies the candidate word pool consumed by the
// game engine at board creation. It is deliberately the thinnest
// component in the system (spec.md §4.A): the rest of the server only
// ever sees a Source, never a file path.
package words

import (
	"bufio"
	"os"
	"strings"

	"codenames/internal/apperr"
)

// Source yields a finite pool of candidate words. Implementations
// must be safe for concurrent use; the store samples from them while
// holding its own lock.
type Source interface {
	// Words returns the full candidate pool. An empty pool is a
	// ConfigError at the caller.
	Words() []string
}

// SliceSource is a fixed in-memory pool, what tests inject directly.
type SliceSource []string

func (s SliceSource) Words() []string { return []string(s) }

// FileSource loads one word per line from a file when it is
// constructed and caches the result, mirroring the original Rust Game::get_words
// (File + BufReader, one word per line) but resolved once at startup
// instead of on every board creation.
type FileSource struct {
	path  string
	words []string
}

// NewFileSource reads path eagerly so a missing or empty word list is
// reported as a ConfigError at startup, never mid-game.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Config("words.NewFileSource", err)
	}
	defer f.Close()

	var ws []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ws = append(ws, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.Config("words.NewFileSource", err)
	}
	if len(ws) == 0 {
		return nil, apperr.Config("words.NewFileSource", errEmptyWordFile)
	}

	return &FileSource{path: path, words: ws}, nil
}

var errEmptyWordFile = wordsError("word source file contains no words")

type wordsError string

func (e wordsError) Error() string { return string(e) }

func (s *FileSource) Words() []string { return s.words }
