package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrCacheVersion is returned when loading a cache written by an
// incompatible major version.
var ErrCacheVersion = errors.New("unsupported cache version")

// Encode writes c as indented JSON followed by a newline.
func Encode(w io.Writer, c *Cache) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(c)
}

// Decode reads a cache and checks its version.
func Decode(r io.Reader) (*Cache, error) {
	var c Cache
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding cache: %w", err)
	}
	if major(c.Version) != major(Version) {
		return nil, fmt.Errorf("%w: %q", ErrCacheVersion, c.Version)
	}
	return &c, nil
}

func major(v string) string {
	m, _, _ := strings.Cut(v, ".")
	return m
}

// Save writes c to path, replacing any existing file atomically.
func Save(path string, c *Cache) error {
	var buf bytes.Buffer
	if err := Encode(&buf, c); err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

// Load reads the cache at path.
func Load(path string) (*Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	defer f.Close()
	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// writeAtomic writes data to a temp file beside path and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// WriteFile writes data to path atomically. It is shared by the vars file.
func WriteFile(path string, data []byte) error { return writeAtomic(path, data) }
