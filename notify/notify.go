// Package notify fans human-readable lifecycle events out to a list of
// recipients.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Message is either plain text or an image with a caption.
type Message struct {
	Text    string `json:"text,omitempty"`
	Image   []byte `json:"image,omitempty"`
	Caption string `json:"caption,omitempty"`
}

func Text(s string) Message { return Message{Text: s} }

// Body returns the text a text-only sink should show.
func (m Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// Notifier is what the engine reports to.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
}

// Recipients supplies the current recipient list.
type Recipients interface {
	List() ([]string, error)
}

// Broadcaster sends every message to every recipient. A failed recipient
// is logged and skipped.
type Broadcaster struct {
	sender Sender
	rcpts  Recipients
	log    *zap.Logger
}

func NewBroadcaster(sender Sender, rcpts Recipients, log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{sender: sender, rcpts: rcpts, log: log.Named("notify")}
}

// Notify returns an error only when the recipient list cannot be read.
func (b *Broadcaster) Notify(ctx context.Context, msg Message) error {
	to, err := b.rcpts.List()
	if err != nil {
		return err
	}
	if len(to) == 0 {
		b.log.Debug("no recipients", zap.String("text", msg.Body()))
		return nil
	}
	for _, r := range to {
		if err := b.sender.Send(ctx, r, msg); err != nil {
			b.log.Warn("send failed", zap.String("recipient", r), zap.Error(err))
		}
	}
	return nil
}

// Recorder keeps every message it is given.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// Texts returns the bodies of all recorded messages.
func (r *Recorder) Texts() []string {
	msgs := r.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Body()
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}

// Discard drops every message.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(context.Context, Message) error { return nil }
