// Package store persists the one outstanding trade per symbol together with
// the analysis text that opened it.
//
// Layout under the root directory:
//
//	pending/trade_<SYMBOL>.json
//	live/trade_<SYMBOL>.json
//	journal/journal_data_<SYMBOL>.json
//
// The record's Status decides which of pending/ and live/ holds it.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/tradekeeper/internal/fsutil"
	"github.com/rustyeddy/tradekeeper/trade"
)

// ErrStateConflict is returned when a symbol already has an outstanding
// record.
var ErrStateConflict = errors.New("trade record already exists for symbol")

// ErrNotFound is returned by operations that need an existing record.
var ErrNotFound = errors.New("no trade record for symbol")

const (
	pendingDir = "pending"
	liveDir    = "live"
	journalDir = "journal"
)

type Store struct {
	root  string
	locks sync.Map // symbol -> *sync.Mutex
}

// Open prepares the directory layout under root.
func Open(root string) (*Store, error) {
	for _, d := range []string{pendingDir, liveDir, journalDir} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("store dir: %w", err)
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string { return s.root }

// Lock takes the per-symbol mutex and returns its release. Every
// read-modify-write of a symbol's record or journal must hold it. The lock
// is not reentrant.
func (s *Store) Lock(symbol string) (unlock func()) {
	v, _ := s.locks.LoadOrStore(trade.NormalizeSymbol(symbol), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Store) recordPath(st trade.Status, symbol string) string {
	dir := liveDir
	if st == trade.Pending {
		dir = pendingDir
	}
	return filepath.Join(s.root, dir, "trade_"+trade.NormalizeSymbol(symbol)+".json")
}

func (s *Store) journalPath(symbol string) string {
	return filepath.Join(s.root, journalDir, "journal_data_"+trade.NormalizeSymbol(symbol)+".json")
}

func (s *Store) read(st trade.Status, symbol string) (*trade.Record, error) {
	var rec trade.Record
	found, err := fsutil.ReadJSON(s.recordPath(st, symbol), &rec)
	if err != nil || !found {
		return nil, err
	}
	// The directory is authoritative for files written before the tag existed.
	rec.Status = st
	return &rec, nil
}

// Get returns the symbol's record or nil when there is none. Live storage
// wins over pending so a promoted record whose pending copy was not yet
// removed is never read as pending.
func (s *Store) Get(symbol string) (*trade.Record, error) {
	rec, err := s.read(trade.Live, symbol)
	if err != nil || rec != nil {
		return rec, err
	}
	return s.read(trade.Pending, symbol)
}

// Create stores a new record. It fails with ErrStateConflict if the symbol
// already has one.
func (s *Store) Create(rec trade.Record) error {
	existing, err := s.Get(rec.Symbol)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s #%s", ErrStateConflict, existing.Symbol, existing.Ticket)
	}
	return s.Put(rec)
}

// Put writes rec to the location its Status selects.
func (s *Store) Put(rec trade.Record) error {
	rec.Symbol = trade.NormalizeSymbol(rec.Symbol)
	if rec.Status != trade.Pending && rec.Status != trade.Live {
		return fmt.Errorf("record %s #%s: bad status %q", rec.Symbol, rec.Ticket, rec.Status)
	}
	return fsutil.WriteJSON(s.recordPath(rec.Status, rec.Symbol), rec)
}

// Promote relocates a pending record to live storage under the same
// ticket. The live copy is written before the pending one is removed.
func (s *Store) Promote(symbol string) (*trade.Record, error) {
	rec, err := s.read(trade.Pending, symbol)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("promote %s: %w", symbol, ErrNotFound)
	}
	rec.Status = trade.Live
	if err := s.Put(*rec); err != nil {
		return nil, err
	}
	if err := fsutil.Remove(s.recordPath(trade.Pending, symbol)); err != nil {
		return nil, err
	}
	return rec, nil
}

// Remove deletes the symbol's record from both locations.
func (s *Store) Remove(symbol string) error {
	return errors.Join(
		fsutil.Remove(s.recordPath(trade.Live, symbol)),
		fsutil.Remove(s.recordPath(trade.Pending, symbol)),
	)
}

// RemovePending deletes only the pending copy.
func (s *Store) RemovePending(symbol string) error {
	return fsutil.Remove(s.recordPath(trade.Pending, symbol))
}

// List returns the records stored with status st, sorted by symbol.
// Unreadable files are reported in the returned error while readable ones
// are still returned.
func (s *Store) List(st trade.Status) ([]trade.Record, error) {
	dir := liveDir
	if st == trade.Pending {
		dir = pendingDir
	}
	entries, err := os.ReadDir(filepath.Join(s.root, dir))
	if err != nil {
		return nil, err
	}

	var (
		out  []trade.Record
		errs []error
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "trade_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		symbol := strings.TrimSuffix(strings.TrimPrefix(name, "trade_"), ".json")
		rec, err := s.read(st, symbol)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, errors.Join(errs...)
}

// Symbols returns every symbol that has a pending or live record.
func (s *Store) Symbols() ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, st := range []trade.Status{trade.Live, trade.Pending} {
		recs, err := s.List(st)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			if !seen[r.Symbol] {
				seen[r.Symbol] = true
				out = append(out, r.Symbol)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
