package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// SecretStore persists opaque secrets by key. Get returns "" with a nil error
// when nothing is stored under the key.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Store(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

var ErrInvalidKey = errors.New("store: invalid secret key")

// FS keeps one file per secret under Root.
type FS struct{ Root string }

func New(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, err
	}
	return &FS{Root: root}, nil
}

func (s *FS) SecretPath(key string) string { return filepath.Join(s.Root, key+".secret") }

func (s *FS) Get(_ context.Context, key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	b, err := os.ReadFile(s.SecretPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (s *FS) Store(_ context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	// write-then-rename so a reader never sees a half-written secret
	tmp, err := os.CreateTemp(s.Root, key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.SecretPath(key))
}

func (s *FS) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := os.Remove(s.SecretPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return ErrInvalidKey
	}
	return nil
}
