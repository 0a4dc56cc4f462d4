package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bnema/healthline/internal/atomicfile"
	"github.com/bnema/healthline/internal/ports"
)

const (
	versionKey   = "version"
	updatedAtKey = "updated_at"
	memoKey      = "value"
)

type Options[T any] struct {
	Path         string
	TTL          time.Duration
	Version      int
	RequiredKeys []string
	// Empty builds the value returned when the file is missing or invalid.
	// It must carry Version in its "version" field.
	Empty func() T
	Clock ports.Clock
}

// JSONFile is a read-through cache over one versioned JSON document. Reads
// never fail: anything unusable on disk yields Empty().
type JSONFile[T any] struct {
	path     string
	version  int
	required []string
	empty    func() T
	clock    ports.Clock
	memo     *Memo[string, T]
}

func NewJSONFile[T any](opts Options[T]) *JSONFile[T] {
	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	empty := opts.Empty
	if empty == nil {
		empty = func() T {
			var zero T
			return zero
		}
	}

	return &JSONFile[T]{
		path:     opts.Path,
		version:  opts.Version,
		required: opts.RequiredKeys,
		empty:    empty,
		clock:    clock,
		memo:     NewMemo[string, T](opts.TTL, clock),
	}
}

func (c *JSONFile[T]) Path() string {
	return c.path
}

func (c *JSONFile[T]) Read() T {
	if value, ok := c.memo.Get(memoKey); ok {
		return value
	}

	value, err := c.load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Debug("cache: using default value", "path", c.path, "error", err)
		}
		return c.empty()
	}

	c.memo.Put(memoKey, value)
	return value
}

func (c *JSONFile[T]) ClearCache() {
	c.memo.InvalidateAll()
}

func (c *JSONFile[T]) Write(value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}
	if err := atomicfile.Write(c.path, data, atomicfile.FileMode); err != nil {
		return err
	}

	c.memo.Put(memoKey, value)
	return nil
}

// Update shallow-merges partial into the stored document's top-level keys and
// stamps updated_at. It starts from Empty() when the stored document is
// unusable.
func (c *JSONFile[T]) Update(partial map[string]any) error {
	doc, err := c.loadRaw()
	if err != nil {
		doc, err = c.emptyRaw()
		if err != nil {
			return err
		}
	}

	for key, value := range partial {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %q: %w", key, err)
		}
		doc[key] = encoded
	}
	doc[versionKey] = json.RawMessage(fmt.Sprintf("%d", c.version))
	doc[updatedAtKey] = json.RawMessage(fmt.Sprintf("%d", c.clock.Now().UnixMilli()))

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}
	if err := atomicfile.Write(c.path, data, atomicfile.FileMode); err != nil {
		return err
	}

	c.memo.InvalidateAll()
	return nil
}

func (c *JSONFile[T]) load() (T, error) {
	var value T

	doc, err := c.loadRaw()
	if err != nil {
		return value, err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return value, err
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("decode %s: %w", c.path, err)
	}

	return value, nil
}

func (c *JSONFile[T]) loadRaw() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty cache file")
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.path, err)
	}
	if doc == nil {
		return nil, errors.New("cache file is not an object")
	}

	var version int
	if err := json.Unmarshal(doc[versionKey], &version); err != nil || version != c.version {
		return nil, fmt.Errorf("unsupported cache version in %s (want %d)", c.path, c.version)
	}

	for _, key := range c.required {
		if _, ok := doc[key]; !ok {
			return nil, fmt.Errorf("missing key %q in %s", key, c.path)
		}
	}

	return doc, nil
}

func (c *JSONFile[T]) emptyRaw() (map[string]json.RawMessage, error) {
	data, err := json.Marshal(c.empty())
	if err != nil {
		return nil, fmt.Errorf("encode default value: %w", err)
	}

	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode default value: %w", err)
	}

	return doc, nil
}
