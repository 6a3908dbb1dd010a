package notify

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rustyeddy/tradekeeper/internal/fsutil"
)

var ErrUnknownRecipient = errors.New("recipient not in list")

// RecipientList is a JSON array of recipient ids kept in a file.
type RecipientList struct {
	mu   sync.Mutex
	path string
}

func NewRecipientList(path string) *RecipientList {
	return &RecipientList{path: path}
}

func (l *RecipientList) load() ([]string, error) {
	var ids []string
	if _, err := fsutil.ReadJSON(l.path, &ids); err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	return ids, nil
}

func (l *RecipientList) List() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Add appends id unless it is already present. It reports whether the list
// changed.
func (l *RecipientList) Add(id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, errors.New("recipients: empty id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.load()
	if err != nil {
		return false, err
	}
	if slices.Contains(ids, id) {
		return false, nil
	}
	return true, fsutil.WriteJSON(l.path, append(ids, id))
}

func (l *RecipientList) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.load()
	if err != nil {
		return err
	}
	i := slices.Index(ids, strings.TrimSpace(id))
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRecipient, id)
	}
	return fsutil.WriteJSON(l.path, slices.Delete(ids, i, i+1))
}

// Static is a fixed recipient list.
type Static []string

func (s Static) List() ([]string, error) { return s, nil }
