package store

import (
	"github.com/rustyeddy/tradekeeper/internal/fsutil"
	"github.com/rustyeddy/tradekeeper/trade"
)

// entries maps ticket to the analysis text that opened it.
type entries map[string]string

func (s *Store) readEntries(symbol string) (entries, error) {
	m := entries{}
	if _, err := fsutil.ReadJSON(s.journalPath(symbol), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// PutAnalysis stores the narrative that justified opening ticket.
func (s *Store) PutAnalysis(symbol string, ticket trade.Ticket, text string) error {
	m, err := s.readEntries(symbol)
	if err != nil {
		return err
	}
	m[ticket.String()] = text
	return fsutil.WriteJSON(s.journalPath(symbol), m)
}

// Analysis returns the stored narrative for ticket and whether one exists.
func (s *Store) Analysis(symbol string, ticket trade.Ticket) (string, bool, error) {
	m, err := s.readEntries(symbol)
	if err != nil {
		return "", false, err
	}
	text, ok := m[ticket.String()]
	return text, ok, nil
}

// TakeAnalysis removes and returns the narrative for ticket. The journal
// file is deleted once it holds no entries.
func (s *Store) TakeAnalysis(symbol string, ticket trade.Ticket) (string, error) {
	m, err := s.readEntries(symbol)
	if err != nil {
		return "", err
	}
	text, ok := m[ticket.String()]
	if !ok {
		return "", nil
	}
	delete(m, ticket.String())
	if len(m) == 0 {
		return text, fsutil.Remove(s.journalPath(symbol))
	}
	return text, fsutil.WriteJSON(s.journalPath(symbol), m)
}
