package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gemterm/gemterm/internal/config"
	"github.com/gemterm/gemterm/internal/provider"
)

const MaxAge = 7 * 24 * time.Hour

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID        string             `json:"id"`
	Model     string             `json:"model"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Messages  []provider.Message `json:"messages"`
}

// Dir holds one JSON file per session.
func Dir() string {
	return filepath.Join(config.Dir(), "sessions")
}

// NewID returns a short random identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func path(id string) string {
	return filepath.Join(Dir(), id+".json")
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\.`)
}

func New(id, model string) *Session {
	now := time.Now()
	return &Session{ID: id, Model: model, CreatedAt: now, UpdatedAt: now}
}

func Load(id string) (*Session, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	data, err := os.ReadFile(path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", id, err)
	}
	return &s, nil
}

func (s *Session) Save() error {
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.UpdatedAt = time.Now()
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path(s.ID), data, 0o644)
}

func Remove(id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err := os.Remove(path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}

// List returns every readable session, most recently updated first.
func List() ([]*Session, error) {
	entries, err := os.ReadDir(Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var sessions []*Session
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		s, err := Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// Cleanup removes sessions not updated within MaxAge and returns how many
// were deleted.
func Cleanup() int {
	sessions, err := List()
	if err != nil {
		return 0
	}
	cutoff := time.Now().Add(-MaxAge)
	n := 0
	for _, s := range sessions {
		if s.UpdatedAt.Before(cutoff) && os.Remove(path(s.ID)) == nil {
			n++
		}
	}
	return n
}
