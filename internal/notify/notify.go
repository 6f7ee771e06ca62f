// Package notify posts per-opportunity progress to an operator channel.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"triarb/internal/ledger"
)

// Message is one post or in-place edit. An empty Ref creates a new thread.
type Message struct {
	Key  string
	Ref  string
	Text string
}

// Notifier publishes a message and returns the reference later edits use.
type Notifier interface {
	Publish(ctx context.Context, msg Message) (ref string, err error)
}

// LogNotifier writes messages to the structured log. The reference is the
// opportunity key, so edits land on the same logical thread.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Publish(ctx context.Context, msg Message) (string, error) {
	ev := n.Logger.Info().Str("triangle", msg.Key)
	if msg.Ref != "" {
		ev = ev.Str("edit", msg.Ref)
	}
	ev.Str("text", msg.Text).Msg("opportunity update")
	if msg.Ref != "" {
		return msg.Ref, nil
	}
	return msg.Key, nil
}

// Nop drops every message.
type Nop struct{}

func (Nop) Publish(ctx context.Context, msg Message) (string, error) { return msg.Ref, nil }

// Post appends line to the opportunity log and publishes the whole log under
// the opportunity's thread, remembering the reference for later edits.
func Post(ctx context.Context, n Notifier, opp *ledger.Opportunity, line string) error {
	text := opp.AppendLog(line)
	if n == nil {
		return nil
	}
	ref, err := n.Publish(ctx, Message{Key: opp.Key(), Ref: opp.ThreadRef(), Text: text})
	if err != nil {
		return err
	}
	if ref != "" {
		opp.SetThreadRef(ref)
	}
	return nil
}
