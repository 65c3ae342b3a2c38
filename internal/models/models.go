// Package models defines the core data structures for the volunteers intake bot.
//
// It includes the dialogue state machine types, the record being collected,
// and the inbound/outbound message shapes shared across modules.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Category identifies the intake purpose a participant selected.
// The set is fixed at build time; each category maps to one ledger destination.
type Category string

const (
	// CategoryProvidingDriver is a volunteer offering transport with their own car.
	CategoryProvidingDriver Category = "providing_driver"
	// CategoryProvidingUsefulContact is a volunteer offering a useful contact.
	CategoryProvidingUsefulContact Category = "providing_useful_contact"
	// CategoryProvidingCollectingAid is a volunteer offering to collect humanitarian or financial aid.
	CategoryProvidingCollectingAid Category = "providing_collecting_aid"
	// CategoryNeedEvacuation is a participant requesting evacuation.
	CategoryNeedEvacuation Category = "need_evacuation"
	// CategoryNeedHumanitarianAid is a participant requesting humanitarian aid.
	CategoryNeedHumanitarianAid Category = "need_humanitarian_aid"
)

// Categories lists every supported category. The order is stable and is used
// for configuration validation.
var Categories = []Category{
	CategoryProvidingDriver,
	CategoryProvidingUsefulContact,
	CategoryProvidingCollectingAid,
	CategoryNeedEvacuation,
	CategoryNeedHumanitarianAid,
}

// IsValidCategory checks if the given category is supported.
func IsValidCategory(c Category) bool {
	switch c {
	case CategoryProvidingDriver, CategoryProvidingUsefulContact, CategoryProvidingCollectingAid,
		CategoryNeedEvacuation, CategoryNeedHumanitarianAid:
		return true
	default:
		return false
	}
}

// Error variables for better error handling and testability
var (
	ErrInvalidCategory      = errors.New("unknown request category")
	ErrRecordIncomplete     = errors.New("record is missing required fields")
	ErrRecordFieldOrder     = errors.New("record fields are not a prefix of the collection order")
	ErrInvalidDialogueState = errors.New("invalid dialogue state")
)

// Record is the structured payload assembled during an intake conversation.
// Fields are collected strictly in declaration order; an empty string means
// the field has not been captured yet.
type Record struct {
	FullName     string `json:"full_name,omitempty"`
	PhoneNumbers string `json:"phone_numbers,omitempty"`
	Address      string `json:"address,omitempty"`
	Comment      string `json:"comment,omitempty"`
}

// fields returns the record values in collection order.
func (r Record) fields() [4]string {
	return [4]string{r.FullName, r.PhoneNumbers, r.Address, r.Comment}
}

// PopulatedCount returns how many leading fields of the record are set.
// It does not validate the prefix invariant; see Validate.
func (r Record) PopulatedCount() int {
	count := 0
	for _, f := range r.fields() {
		if f == "" {
			break
		}
		count++
	}
	return count
}

// Complete reports whether all four fields have been captured.
func (r Record) Complete() bool {
	return r.PopulatedCount() == len(r.fields())
}

// Validate checks the prefix invariant: the set of populated fields must be a
// prefix of (full name, phone numbers, address, comment) with no gaps.
func (r Record) Validate() error {
	seenEmpty := false
	for _, f := range r.fields() {
		if f == "" {
			seenEmpty = true
			continue
		}
		if seenEmpty {
			return ErrRecordFieldOrder
		}
	}
	return nil
}

// StateKind discriminates the dialogue state variants.
type StateKind string

const (
	// StateIdle means no active intake; initial and terminal state.
	StateIdle StateKind = "idle"
	// StateSelectingProvideCategory means the participant declared intent to help
	// and a category choice is awaited.
	StateSelectingProvideCategory StateKind = "selecting_provide_category"
	// StateSelectingRequestCategory means the participant declared intent to
	// request help and a category choice is awaited.
	StateSelectingRequestCategory StateKind = "selecting_request_category"
	// StateCollectingRecord means record fields are actively being collected.
	StateCollectingRecord StateKind = "collecting_record"
)

// DialogueState is the finite-state snapshot of one session's progress.
// Category and Record are meaningful only when Kind is StateCollectingRecord;
// Record stays nil until the first field is captured.
type DialogueState struct {
	Kind     StateKind `json:"kind"`
	Category Category  `json:"category,omitempty"`
	Record   *Record   `json:"record,omitempty"`
}

// IdleState returns the initial dialogue state. A session never seen before is
// treated as idle, so this is also the default for store misses.
func IdleState() DialogueState {
	return DialogueState{Kind: StateIdle}
}

// CollectingState returns a fresh collecting state for the given category.
func CollectingState(category Category) DialogueState {
	return DialogueState{Kind: StateCollectingRecord, Category: category}
}

// Validate checks internal consistency of the dialogue state.
func (s DialogueState) Validate() error {
	switch s.Kind {
	case StateIdle, StateSelectingProvideCategory, StateSelectingRequestCategory:
		return nil
	case StateCollectingRecord:
		if !IsValidCategory(s.Category) {
			return fmt.Errorf("%w: %q", ErrInvalidCategory, s.Category)
		}
		if s.Record != nil {
			return s.Record.Validate()
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDialogueState, s.Kind)
	}
}

// InboundMessage is one event received from the chat transport. Only the
// textual content matters to the core; attachments and metadata are discarded
// by the transport. Text is empty for non-text events.
type InboundMessage struct {
	SessionKey string
	Text       string
}

// Reply is one outbound message for the chat transport. SuggestedReplies are
// rendered as whatever quick-reply affordance the transport supports; an empty
// slice clears any previous affordance.
type Reply struct {
	SessionKey       string
	Text             string
	SuggestedReplies []string
}

// Submission status values recorded in the audit trail.
const (
	// SubmissionDelivered means the ledger append succeeded.
	SubmissionDelivered = "delivered"
	// SubmissionFailed means the ledger append failed; the row is kept for manual recovery.
	SubmissionFailed = "failed"
)

// Submission is the audit-trail entry for one commit attempt. Every completed
// record produces exactly one submission regardless of the sink outcome.
type Submission struct {
	ID          string    `json:"id"`
	Category    Category  `json:"category"`
	Record      Record    `json:"record"`
	SubmittedAt time.Time `json:"submitted_at"`
	SinkStatus  string    `json:"sink_status"`
	SinkError   string    `json:"sink_error,omitempty"`
}
