package gate

import (
	"fmt"
	"sync"

	"github.com/rustyeddy/tradekeeper/internal/fsutil"
)

type pauseState struct {
	IsPaused bool `json:"isPaused"`
}

// PauseFlag is the operator's pause switch, kept in a small JSON file.
type PauseFlag struct {
	mu   sync.Mutex
	path string
}

func NewPauseFlag(path string) *PauseFlag {
	return &PauseFlag{path: path}
}

// Paused reports the flag. A missing file means not paused.
func (p *PauseFlag) Paused() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var st pauseState
	if _, err := fsutil.ReadJSON(p.path, &st); err != nil {
		return false, fmt.Errorf("pause flag: %w", err)
	}
	return st.IsPaused, nil
}

func (p *PauseFlag) Set(paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fsutil.WriteJSON(p.path, pauseState{IsPaused: paused})
}
