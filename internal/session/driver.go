// Package session orchestrates one dialogue transition per inbound message:
// load state, apply the transition, persist, reply, and commit completed
// records to the ledger.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frol/connect-volunteers-bot/internal/dialog"
	"github.com/frol/connect-volunteers-bot/internal/ledger"
	"github.com/frol/connect-volunteers-bot/internal/models"
	"github.com/frol/connect-volunteers-bot/internal/store"
)

// Timeout defaults for the two external I/O calls the driver makes.
const (
	// DefaultSendTimeout bounds one reply delivery to the chat transport.
	DefaultSendTimeout = 10 * time.Second
	// DefaultSinkTimeout bounds one ledger append.
	DefaultSinkTimeout = 30 * time.Second
)

// Messenger delivers replies to the chat transport.
type Messenger interface {
	SendReply(ctx context.Context, reply models.Reply) error
}

// Opts holds configuration options for the driver.
type Opts struct {
	SendTimeout time.Duration
	SinkTimeout time.Duration
	Clock       func() time.Time
	NewID       func() string
}

// Option defines a configuration option for the driver.
type Option func(*Opts)

// WithSendTimeout sets the reply delivery timeout.
func WithSendTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.SendTimeout = d
	}
}

// WithSinkTimeout sets the ledger append timeout.
func WithSinkTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.SinkTimeout = d
	}
}

// WithClock overrides the commit timestamp source (for tests).
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) {
		o.Clock = clock
	}
}

// WithIDGenerator overrides the submission ID source (for tests).
func WithIDGenerator(newID func() string) Option {
	return func(o *Opts) {
		o.NewID = newID
	}
}

// Driver glues the transition function to the store, the chat transport, and
// the ledger sink. It is safe for concurrent use; per-key serialization is the
// store's responsibility.
type Driver struct {
	store       store.Store
	messenger   Messenger
	sink        ledger.Sink
	sendTimeout time.Duration
	sinkTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

// NewDriver creates a session driver.
func NewDriver(st store.Store, messenger Messenger, sink ledger.Sink, opts ...Option) *Driver {
	cfg := Opts{
		SendTimeout: DefaultSendTimeout,
		SinkTimeout: DefaultSinkTimeout,
		Clock:       time.Now,
		NewID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Driver{
		store:       st,
		messenger:   messenger,
		sink:        sink,
		sendTimeout: cfg.SendTimeout,
		sinkTimeout: cfg.SinkTimeout,
		now:         cfg.Clock,
		newID:       cfg.NewID,
	}
}

// HandleMessage processes one inbound message. Side effects happen in a fixed
// order: persist the next state, send the reply, then invoke the ledger sink
// for a commit. A store failure leaves the event unprocessed and is returned
// to the caller, which may retry the whole step idempotently. A reply
// delivery failure is logged but not returned: the state has already
// advanced, so re-running the transition would corrupt the session.
func (d *Driver) HandleMessage(ctx context.Context, msg models.InboundMessage) error {
	slog.Debug("Driver HandleMessage", "sessionKey", msg.SessionKey, "text_length", len(msg.Text))

	var result dialog.Result
	_, err := d.store.UpdateState(msg.SessionKey, func(current models.DialogueState) models.DialogueState {
		result = dialog.Transition(current, msg.Text)
		return result.Next
	})
	if err != nil {
		slog.Error("Driver HandleMessage store update failed, event unprocessed", "error", err, "sessionKey", msg.SessionKey)
		return fmt.Errorf("failed to update session state for %s: %w", msg.SessionKey, err)
	}

	if result.Reply != nil {
		d.sendReply(ctx, msg.SessionKey, *result.Reply)
	}

	if result.Commit != nil {
		d.commit(ctx, *result.Commit)
	}
	return nil
}

// sendReply delivers one reply, bounded by the send timeout. Failures only
// affect reply delivery; the persisted state is already final.
func (d *Driver) sendReply(ctx context.Context, sessionKey string, prompt dialog.Prompt) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	reply := models.Reply{
		SessionKey:       sessionKey,
		Text:             prompt.Text,
		SuggestedReplies: prompt.SuggestedReplies,
	}
	if err := d.messenger.SendReply(sendCtx, reply); err != nil {
		slog.Error("Driver reply delivery failed; state already advanced, not reprocessing",
			"error", err, "sessionKey", sessionKey)
	}
}

// commit invokes the ledger sink once for a completed record and records the
// outcome in the submission audit trail. A sink failure never reopens the
// session: the participant was already told the submission was accepted, so
// the failure is surfaced to operators instead.
func (d *Driver) commit(ctx context.Context, commit dialog.Commit) {
	submission := models.Submission{
		ID:          d.newID(),
		Category:    commit.Category,
		Record:      commit.Record,
		SubmittedAt: d.now(),
		SinkStatus:  models.SubmissionDelivered,
	}

	sinkCtx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
	defer cancel()
	if err := d.sink.Append(sinkCtx, commit.Category, commit.Record, submission.SubmittedAt); err != nil {
		submission.SinkStatus = models.SubmissionFailed
		submission.SinkError = err.Error()
		slog.Error("Driver ledger append failed; record kept for manual recovery",
			"error", err,
			"submission_id", submission.ID,
			"category", commit.Category,
			"full_name", commit.Record.FullName,
			"phone_numbers", commit.Record.PhoneNumbers,
			"address", commit.Record.Address,
			"comment", commit.Record.Comment,
			"submitted_at", submission.SubmittedAt)
	} else {
		slog.Info("Driver submission delivered to ledger", "submission_id", submission.ID, "category", commit.Category)
	}

	if err := d.store.AddSubmission(submission); err != nil {
		slog.Error("Driver failed to record submission in audit trail", "error", err, "submission_id", submission.ID)
	}
}
