package graphcache

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

// FileStore keeps each artifact in the file named by its key. Relative keys
// are resolved under Root.
type FileStore struct {
	Root string
}

func (s FileStore) path(key Key) string {
	p := string(key)
	if s.Root != "" && !filepath.IsAbs(p) {
		p = filepath.Join(s.Root, p)
	}
	return p
}

// Load implements Store.
func (s FileStore) Load(key Key) (*Artifact, error) {
	p := s.path(key)
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read graph cache %s: %w", p, err)
	}
	a, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode graph cache %s: %w", p, err)
	}
	return a, nil
}

// Save implements Store. The artifact is written to a temp file in the same
// directory and renamed into place.
func (s FileStore) Save(key Key, a *Artifact) error {
	p := s.path(key)
	if p == "" {
		return fmt.Errorf("empty cache path")
	}
	b, err := Encode(a)
	if err != nil {
		return err
	}

	dir := filepath.Dir(p)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(p)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmpFile.Write(b); err != nil {
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		log.Printf("warning: sync temp cache file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("rename temp cache to target: %w", err)
	}
	return nil
}
