// Package memo caches parse results by file content so re-ingesting an
// unchanged boardview skips decoding.
package memo

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cockroachdb/pebble"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
)

// schema prefixes every key; bump it when the stored layout changes.
const schema = "parse/v1/"

// Memo is a pebble-backed map from (content hash, format) to parse result.
// Meta values come back as their JSON forms: numbers as float64, structs as
// maps.
type Memo struct {
	db *pebble.DB
}

// pebbleLogger routes pebble's own messages into slog at debug level.
type pebbleLogger struct{ l *slog.Logger }

func (p pebbleLogger) Infof(format string, args ...interface{}) {
	p.l.Debug(fmt.Sprintf(format, args...), "comp", "memo")
}

func (p pebbleLogger) Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.l.Error(msg, "comp", "memo")
	panic(msg)
}

// Open opens or creates the memo database in dir.
func Open(dir string, logger *slog.Logger) (*Memo, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	db, err := pebble.Open(dir, &pebble.Options{Logger: pebbleLogger{logger}})
	if err != nil {
		return nil, fmt.Errorf("memo: open %s: %w", dir, err)
	}
	return &Memo{db: db}, nil
}

// Close releases the database.
func (m *Memo) Close() error {
	return m.db.Close()
}

// Key is the memo key of data decoded as format.
func Key(data []byte, format model.Format) []byte {
	sum := sha256.Sum256(data)
	return []byte(schema + hex.EncodeToString(sum[:]) + "/" + format.String())
}

// Get returns the memoized result for data, if any.
func (m *Memo) Get(data []byte, format model.Format) (*model.ParseResult, bool, error) {
	val, closer, err := m.db.Get(Key(data, format))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("memo: get: %w", err)
	}
	defer closer.Close()

	var res model.ParseResult
	if err := json.Unmarshal(val, &res); err != nil {
		return nil, false, fmt.Errorf("memo: decode: %w", err)
	}
	if res.Nets == nil {
		res.Nets = model.NetSet{}
	}
	if res.NetToRefs == nil {
		res.NetToRefs = map[string][]model.Link{}
	}
	if res.Meta == nil {
		res.Meta = model.Meta{}
	}
	return &res, true, nil
}

// Put stores res for data.
func (m *Memo) Put(data []byte, format model.Format, res *model.ParseResult) error {
	val, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("memo: encode: %w", err)
	}
	if err := m.db.Set(Key(data, format), val, pebble.Sync); err != nil {
		return fmt.Errorf("memo: put: %w", err)
	}
	return nil
}

// Forget drops the entry for data.
func (m *Memo) Forget(data []byte, format model.Format) error {
	if err := m.db.Delete(Key(data, format), pebble.Sync); err != nil {
		return fmt.Errorf("memo: delete: %w", err)
	}
	return nil
}
