package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bnema/healthline/internal/atomicfile"
)

const stateSuffix = ".json"

var (
	ErrInvalidSessionID = errors.New("invalid session id")
	sessionIDPattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)
)

// Store keeps one durable state file per session in a directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: filepath.Clean(dir)}
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(sessionID string) (string, error) {
	if !sessionIDPattern.MatchString(sessionID) || strings.Contains(sessionID, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	return filepath.Join(s.dir, sessionID+stateSuffix), nil
}

// Load returns false when the session has no readable state. A state written
// by a newer schema is treated as absent.
func (s *Store) Load(sessionID string) (DurableState, bool, error) {
	path, err := s.path(sessionID)
	if err != nil {
		return DurableState{}, false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DurableState{}, false, nil
		}
		return DurableState{}, false, fmt.Errorf("read session state: %w", err)
	}

	var d DurableState
	if err := json.Unmarshal(data, &d); err != nil {
		return DurableState{}, false, fmt.Errorf("decode session state: %w", err)
	}
	if d.Version != SchemaVersion {
		return DurableState{}, false, nil
	}

	return d, true, nil
}

func (s *Store) Save(d DurableState) error {
	path, err := s.path(d.SessionID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if err := atomicfile.Write(path, data, atomicfile.FileMode); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}

// Sessions lists stored session ids, most recently written first.
func (s *Store) Sessions() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list session states: %w", err)
	}

	type stamped struct {
		id    string
		mtime int64
	}
	found := make([]stamped, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, stateSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, stateSuffix)
		if !sessionIDPattern.MatchString(id) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, stamped{id: id, mtime: info.ModTime().UnixNano()})
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].mtime != found[j].mtime {
			return found[i].mtime > found[j].mtime
		}
		return found[i].id < found[j].id
	})

	ids := make([]string, 0, len(found))
	for _, f := range found {
		ids = append(ids, f.id)
	}
	return ids, nil
}
