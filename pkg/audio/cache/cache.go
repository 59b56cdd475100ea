// Package cache persists decoded library tracks in a local BadgerDB so that
// restarts skip decoding and resampling.
//
// Entries are keyed by the absolute source path, file size, modification
// time and target sample format. Editing or replacing a file therefore
// invalidates its entry without any explicit bookkeeping. Values are
// msgpack-encoded interleaved float32 samples.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/faiface/beep"
	"github.com/vmihailenco/msgpack/v5"
)

// keyPrefix namespaces cache keys so the database can hold other data later.
const keyPrefix = "track:v1:"

// Options configures [Open].
type Options struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory
	// is set.
	Dir string

	// InMemory runs BadgerDB without disk persistence. Useful for tests.
	InMemory bool

	// Logger receives badger warnings and errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// Cache is a decoded-buffer cache. It is safe for concurrent use.
type Cache struct {
	db  *badger.DB
	log *slog.Logger
}

// entry is the persisted form of a decoded buffer.
type entry struct {
	SampleRate  int       `msgpack:"sr"`
	NumChannels int       `msgpack:"ch"`
	Precision   int       `msgpack:"pr"`
	Samples     []float32 `msgpack:"s"` // interleaved left/right
}

// Open opens (or creates) the cache.
func Open(opts Options) (*Cache, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("cache: Options.Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{log: logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}
	return &Cache{db: db, log: logger}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Lookup returns the cached buffer for path in format. Misses, stale entries
// and corrupt entries all report ok=false; corrupt entries are logged.
func (c *Cache) Lookup(path string, format beep.Format) (*beep.Buffer, bool) {
	key, err := Key(path, format)
	if err != nil {
		return nil, false
	}

	var raw []byte
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("cache: lookup failed", "path", path, "err", err)
		return nil, false
	}

	var e entry
	if err := msgpack.Unmarshal(raw, &e); err != nil {
		c.log.Warn("cache: corrupt entry", "path", path, "err", err)
		return nil, false
	}
	if e.SampleRate != int(format.SampleRate) || e.NumChannels != format.NumChannels || len(e.Samples)%2 != 0 {
		return nil, false
	}
	return toBuffer(e, format), true
}

// Store persists buf as the decoded form of path in format.
func (c *Cache) Store(path string, format beep.Format, buf *beep.Buffer) error {
	key, err := Key(path, format)
	if err != nil {
		return err
	}
	raw, err := msgpack.Marshal(fromBuffer(buf, format))
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", path, err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, raw)
	})
	if err != nil {
		return fmt.Errorf("cache: store %s: %w", path, err)
	}
	return nil
}

// Key derives the cache key for path in format from the file's current
// metadata.
func Key(path string, format beep.Format) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cache: key %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("cache: key %s: %w", path, err)
	}
	return fmt.Appendf(nil, "%s%s|%d|%d|%d/%d/%d",
		keyPrefix, abs, info.Size(), info.ModTime().UnixNano(),
		format.SampleRate, format.NumChannels, format.Precision), nil
}

func fromBuffer(buf *beep.Buffer, format beep.Format) entry {
	n := buf.Len()
	e := entry{
		SampleRate:  int(format.SampleRate),
		NumChannels: format.NumChannels,
		Precision:   format.Precision,
		Samples:     make([]float32, 0, 2*n),
	}
	s := buf.Streamer(0, n)
	chunk := make([][2]float64, 4096)
	for {
		got, ok := s.Stream(chunk)
		for _, smp := range chunk[:got] {
			e.Samples = append(e.Samples, float32(smp[0]), float32(smp[1]))
		}
		if !ok || got == 0 {
			break
		}
	}
	return e
}

func toBuffer(e entry, format beep.Format) *beep.Buffer {
	samples := e.Samples
	buf := beep.NewBuffer(format)
	buf.Append(beep.StreamerFunc(func(out [][2]float64) (int, bool) {
		if len(samples) == 0 {
			return 0, false
		}
		n := min(len(out), len(samples)/2)
		for i := range n {
			out[i] = [2]float64{float64(samples[2*i]), float64(samples[2*i+1])}
		}
		samples = samples[2*n:]
		return n, true
	}))
	return buf
}

// badgerLogger routes badger's warnings and errors to slog and drops its
// chatty info and debug output.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...any)   { l.log.Error("cache: badger: " + fmt.Sprintf(f, v...)) }
func (l badgerLogger) Warningf(f string, v ...any) { l.log.Warn("cache: badger: " + fmt.Sprintf(f, v...)) }
func (badgerLogger) Infof(string, ...any)          {}
func (badgerLogger) Debugf(string, ...any)         {}
