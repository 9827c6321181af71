package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore is the fallback when no Redis is configured. Each user gets an
// append-only JSONL file of snapshots; Load takes the newest valid line.
// Snapshots older than the TTL are ignored on load.
type FileStore struct {
	dir string
	ttl time.Duration
}

// Rewrite the file down to the latest snapshot once it grows past this.
const maxSessionFileBytes = 4 * 1024 * 1024

func NewFileStore(dataDir string, ttl time.Duration) (*FileStore, error) {
	dir := strings.TrimSpace(dataDir)
	if dir == "" {
		return nil, errors.New("data dir is required")
	}
	dir = filepath.Join(dir, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &FileStore{dir: dir, ttl: ttl}, nil
}

func (s *FileStore) pathFor(userID string) string {
	return filepath.Join(s.dir, userID+".jsonl")
}

func sanitizeUserID(userID string) (string, error) {
	id := strings.TrimSpace(userID)
	if id == "" {
		return "", errors.New("user id is required")
	}
	if strings.ContainsAny(id, `/\.`) {
		return "", fmt.Errorf("invalid user id %q", id)
	}
	return id, nil
}

func (s *FileStore) Save(ctx context.Context, userID string, rec Record) error {
	if s == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := sanitizeUserID(userID)
	if err != nil {
		return err
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	path := s.pathFor(id)
	if info, err := os.Stat(path); err == nil && info.Size() > maxSessionFileBytes {
		return os.WriteFile(path, append(data, '\n'), 0o644)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

func (s *FileStore) Load(ctx context.Context, userID string) (Record, bool, error) {
	if s == nil {
		return Record{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	id, err := sanitizeUserID(userID)
	if err != nil {
		return Record{}, false, err
	}

	f, err := os.Open(s.pathFor(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	defer f.Close()

	var (
		latest Record
		found  bool
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		latest = rec
		found = true
	}
	if err := scanner.Err(); err != nil {
		return Record{}, false, err
	}
	if !found {
		return Record{}, false, nil
	}
	if s.ttl > 0 && !latest.SavedAt.IsZero() && time.Since(latest.SavedAt) > s.ttl {
		return Record{}, false, nil
	}
	return latest, true, nil
}

func (s *FileStore) Clear(ctx context.Context, userID string) error {
	if s == nil {
		return nil
	}
	id, err := sanitizeUserID(userID)
	if err != nil {
		return err
	}
	err = os.Remove(s.pathFor(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FileStore) Close() error { return nil }
