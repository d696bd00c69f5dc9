// Package audio stores synthesized and uploaded audio files on disk and
// serves them by public URL.
package audio

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix is the public path audio files are served under.
const URLPrefix = "/audio/"

// Store writes audio files under a single directory. File names are random,
// so writes never collide and URLs are not guessable from conversation ids.
type Store struct {
	dir string
}

// NewStore creates the directory if needed and returns a store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// SaveMP3 writes synthesized audio and returns its public URL.
func (s *Store) SaveMP3(data []byte) (string, error) {
	return s.save(data, ".mp3")
}

// SaveUpload writes user-uploaded audio, keeping a sanitized extension from
// the original filename. Unrecognized extensions fall back to .mp3.
func (s *Store) SaveUpload(data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mp3", ".wav", ".ogg", ".webm", ".m4a":
	default:
		ext = ".mp3"
	}
	return s.save(data, ext)
}

func (s *Store) save(data []byte, ext string) (string, error) {
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return URLPrefix + name, nil
}

// Remove deletes the file behind a public URL. URLs outside the store's
// namespace, or names that would escape the directory, are rejected.
func (s *Store) Remove(url string) error {
	name, ok := strings.CutPrefix(url, URLPrefix)
	if !ok {
		return fmt.Errorf("not an audio url: %q", url)
	}
	if name == "" || name != path.Base(name) {
		return fmt.Errorf("invalid audio file name: %q", name)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove audio file: %w", err)
	}
	return nil
}

// Handler serves the stored files under URLPrefix.
func (s *Store) Handler() http.Handler {
	return http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.dir)))
}
