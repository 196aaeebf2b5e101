package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps one JSON document per username in a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("profile directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}
	return &FileStore{dir: filepath.Clean(dir), now: time.Now}, nil
}

func (f *FileStore) path(username string) string {
	return filepath.Join(f.dir, url.PathEscape(username)+".json")
}

func (f *FileStore) Load(ctx context.Context, username string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	username = NormalizeUsername(username)
	if err := ValidateUsername(username); err != nil {
		return Profile{}, ErrNotFound
	}

	data, err := os.ReadFile(f.path(username))
	if errors.Is(err, fs.ErrNotExist) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %s: %w", username, err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile %s: %w", username, err)
	}
	if p.Skills == nil {
		p.Skills = map[string]int{}
	}
	return p, nil
}

func (f *FileStore) Save(ctx context.Context, p Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Username = NormalizeUsername(p.Username)
	if err := Validate(p); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if prev, err := f.Load(ctx, p.Username); err == nil && !prev.CreatedAt.IsZero() {
		p.CreatedAt = prev.CreatedAt
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.Username, err)
	}
	// write-then-rename so readers never see a partial file
	tmp := f.path(p.Username) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write profile %s: %w", p.Username, err)
	}
	if err := os.Rename(tmp, f.path(p.Username)); err != nil {
		return fmt.Errorf("write profile %s: %w", p.Username, err)
	}
	return nil
}
