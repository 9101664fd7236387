package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/levenlabs/go-lflag"
)

// FileStore implements Store using JSON files in a directory.
type FileStore struct {
	dir string
}

// configuredFile sets up the file provider. It registers flags for
// configuration.
func configuredFile() *FileStore {
	dir := lflag.String("storage-dir", "", "Directory for session state files (default: ~/.config/edsmon)")

	f := &FileStore{}

	lflag.Do(func() {
		f.dir = *dir
	})

	return f
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	f := &FileStore{dir: dir}
	if err := f.Init(context.Background()); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks if the provider is properly configured.
func (f *FileStore) Validate() error {
	return nil
}

// Init resolves the state directory and creates it if missing.
func (f *FileStore) Init(ctx context.Context) error {
	if f.dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to determine home directory: %w", err)
		}
		f.dir = filepath.Join(home, ".config", "edsmon")
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", f.dir, err)
	}
	return nil
}

func (f *FileStore) Close() error {
	return nil
}

// sanitizeAccount makes an account name safe to use as a filename component.
func sanitizeAccount(account string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")
	return r.Replace(account)
}

func (f *FileStore) path(account, kind string) string {
	return filepath.Join(f.dir, sanitizeAccount(account)+"-"+kind+".json")
}

func (f *FileStore) load(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (f *FileStore) save(path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (f *FileStore) LoadAccess(ctx context.Context, account string) (Access, error) {
	var a Access
	if err := f.load(f.path(account, "access"), &a); err != nil {
		return Access{}, err
	}
	return a, nil
}

func (f *FileStore) SaveAccess(ctx context.Context, account string, access Access) error {
	return f.save(f.path(account, "access"), access)
}

func (f *FileStore) LoadCookies(ctx context.Context, account string) ([]Cookie, error) {
	var c []Cookie
	if err := f.load(f.path(account, "cookies"), &c); err != nil {
		return nil, err
	}
	return c, nil
}

func (f *FileStore) SaveCookies(ctx context.Context, account string, cookies []Cookie) error {
	return f.save(f.path(account, "cookies"), cookies)
}
