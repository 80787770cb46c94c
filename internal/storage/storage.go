package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Key prefixes
const (
	prefixOption  = "option/"
	prefixArchive = "archive/"
	keyArchiveSeq = "seq/archive"
)

// ErrClosed is returned by every method after Close.
var ErrClosed = errors.New("storage: closed")

// Record is one archived enumeration run.
type Record struct {
	ID         uint64        `json:"id"`
	Time       time.Time     `json:"time"`
	Policy     string        `json:"policy"`
	RootFEN    string        `json:"root_fen"`
	Found      bool          `json:"found"`
	Centipawns int           `json:"cp"`
	BestFEN    string        `json:"best_fen,omitempty"`
	Moves      []string      `json:"moves,omitempty"`
	Leaves     uint64        `json:"leaves"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Store wraps BadgerDB for option persistence and the enumeration archive.
// Archive records are stored as zstd-compressed JSON.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger *zap.Logger
}

// Open opens (or creates) the database in dir. An empty dir uses the
// platform data directory.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		var err error
		if dir, err = DatabaseDir(); err != nil {
			return nil, err
		}
	}
	return open(badger.DefaultOptions(dir), logger)
}

// OpenInMemory opens a database that lives only as long as the Store.
func OpenInMemory(logger *zap.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badger.Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Logger = badgerLogger{logger.Sugar()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", opts.Dir, err)
	}
	seq, err := db.GetSequence([]byte(keyArchiveSeq), 16)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: sequence: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		seq.Release()
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		seq.Release()
		db.Close()
		return nil, err
	}
	logger.Debug("storage opened", zap.String("dir", opts.Dir), zap.Bool("in_memory", opts.InMemory))
	return &Store{db: db, seq: seq, enc: enc, dec: dec, logger: logger}, nil
}

// Close releases the sequence and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.seq.Release()
	s.enc.Close()
	s.dec.Close()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	s.db = nil
	return err
}

func optionKey(name string) []byte {
	return []byte(prefixOption + strings.ToLower(name))
}

// SaveOption persists one option value under its case-insensitive name.
func (s *Store) SaveOption(name, value string) error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(optionKey(name), []byte(value))
	})
}

// DeleteOption forgets a persisted option.
func (s *Store) DeleteOption(name string) error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(optionKey(name))
	})
}

// LoadOptions returns every persisted option keyed by lowercase name.
func (s *Store) LoadOptions() (map[string]string, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	out := make(map[string]string)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixOption)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), prefixOption)
			err := item.Value(func(val []byte) error {
				out[name] = string(val)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func archiveKey(id uint64) []byte {
	key := make([]byte, len(prefixArchive)+8)
	copy(key, prefixArchive)
	binary.BigEndian.PutUint64(key[len(prefixArchive):], id)
	return key
}

// Archive stores rec, assigning its ID and, if unset, its Time.
func (s *Store) Archive(rec *Record) error {
	if s.db == nil {
		return ErrClosed
	}
	id, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("storage: next id: %w", err)
	}
	// Sequences start at zero; IDs start at one.
	rec.ID = id + 1
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	compressed := s.enc.EncodeAll(data, nil)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(archiveKey(rec.ID), compressed)
	})
	if err != nil {
		return fmt.Errorf("storage: archive: %w", err)
	}
	s.logger.Debug("enumeration archived", zap.Uint64("id", rec.ID), zap.Int("bytes", len(compressed)))
	return nil
}

// Records returns up to limit archived records, newest first. A limit of
// zero or less returns all of them.
func (s *Store) Records(limit int) ([]Record, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	var out []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixArchive)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(archiveKey(^uint64(0))); it.Valid(); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				data, err := s.dec.DecodeAll(val, nil)
				if err != nil {
					return err
				}
				return json.Unmarshal(data, &rec)
			})
			if err != nil {
				return fmt.Errorf("storage: decode %x: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// badgerLogger routes badger's messages through zap.
type badgerLogger struct{ *zap.SugaredLogger }

func (l badgerLogger) Warningf(format string, args ...any) { l.Warnf(format, args...) }
