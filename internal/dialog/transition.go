package dialog

import (
	"log/slog"

	"github.com/frol/connect-volunteers-bot/internal/models"
)

// Commit signals that a completed record should be written to the ledger.
type Commit struct {
	Category models.Category
	Record   models.Record
}

// Result is the outcome of one transition. Reply is nil when the event is
// ignored (empty or non-text input). Commit is non-nil only when the
// participant confirmed a completed record.
type Result struct {
	Next   models.DialogueState
	Reply  *Prompt
	Commit *Commit
}

func ignored(state models.DialogueState) Result {
	return Result{Next: state}
}

func reprompt(state models.DialogueState, p Prompt) Result {
	return Result{Next: state, Reply: &p}
}

func advance(next models.DialogueState, p Prompt) Result {
	return Result{Next: next, Reply: &p}
}

// Transition computes the next dialogue state, the reply to send, and an
// optional commit action for one inbound text. It is a pure mapping: identical
// (state, text) pairs always produce identical results, and no I/O happens
// here beyond logging.
func Transition(state models.DialogueState, text string) Result {
	// Empty or non-text events are ignored in every state.
	if text == "" {
		return ignored(state)
	}

	switch state.Kind {
	case models.StateIdle:
		return transitionIdle(text)
	case models.StateSelectingProvideCategory:
		return transitionSelectingProvide(state, text)
	case models.StateSelectingRequestCategory:
		return transitionSelectingRequest(state, text)
	case models.StateCollectingRecord:
		return transitionCollecting(state, text)
	default:
		slog.Error("Transition encountered unknown state kind, resetting session", "kind", state.Kind)
		return Result{Next: models.IdleState(), Reply: promptPtr(TopMenuPrompt())}
	}
}

func transitionIdle(text string) Result {
	switch text {
	case TokenOfferHelp:
		return advance(models.DialogueState{Kind: models.StateSelectingProvideCategory}, provideMenuPrompt())
	case TokenRequestHelp:
		return advance(models.DialogueState{Kind: models.StateSelectingRequestCategory}, requestMenuPrompt())
	default:
		return reprompt(models.IdleState(), TopMenuPrompt())
	}
}

func transitionSelectingProvide(state models.DialogueState, text string) Result {
	switch text {
	case TokenProvidingDriver:
		return advance(models.CollectingState(models.CategoryProvidingDriver), fullNamePrompt())
	case TokenProvidingCollectingAid:
		return advance(models.CollectingState(models.CategoryProvidingCollectingAid), fullNamePrompt())
	case TokenProvidingUsefulContact:
		return advance(models.CollectingState(models.CategoryProvidingUsefulContact), fullNamePrompt())
	default:
		return reprompt(state, provideMenuPrompt())
	}
}

func transitionSelectingRequest(state models.DialogueState, text string) Result {
	switch text {
	case TokenNeedEvacuation:
		return advance(models.CollectingState(models.CategoryNeedEvacuation), fullNamePrompt())
	case TokenNeedHumanitarianAid:
		return advance(models.CollectingState(models.CategoryNeedHumanitarianAid), fullNamePrompt())
	default:
		return reprompt(state, requestMenuPrompt())
	}
}

func transitionCollecting(state models.DialogueState, text string) Result {
	if state.Record == nil {
		record := models.Record{FullName: text}
		next := models.DialogueState{Kind: models.StateCollectingRecord, Category: state.Category, Record: &record}
		return advance(next, phoneNumbersPrompt())
	}

	record := *state.Record
	if err := record.Validate(); err != nil {
		return resetOnViolation(state, err)
	}

	switch record.PopulatedCount() {
	case 1:
		record.PhoneNumbers = text
		return advance(collectingWith(state.Category, record), addressPrompt())
	case 2:
		record.Address = text
		return advance(collectingWith(state.Category, record), commentPrompt())
	case 3:
		record.Comment = text
		return advance(collectingWith(state.Category, record), confirmationPrompt(record))
	case 4:
		return transitionConfirming(state, record, text)
	default:
		// A non-nil record with zero populated fields cannot be produced by any
		// public transition.
		return resetOnViolation(state, models.ErrRecordFieldOrder)
	}
}

func transitionConfirming(state models.DialogueState, record models.Record, text string) Result {
	switch text {
	case TokenConfirmYes:
		return Result{
			Next:   models.IdleState(),
			Reply:  promptPtr(submittedPrompt()),
			Commit: &Commit{Category: state.Category, Record: record},
		}
	case TokenConfirmNo:
		return Result{Next: models.IdleState(), Reply: promptPtr(cancelledPrompt())}
	default:
		return reprompt(state, confirmationRepeatPrompt())
	}
}

// resetOnViolation handles a malformed partial record. It cannot be reached
// through the public transition rules; if it happens anyway the session is
// forcibly reset and the participant is shown the top-level menu.
func resetOnViolation(state models.DialogueState, err error) Result {
	slog.Error("Transition detected malformed partial record, resetting session",
		"error", err, "category", state.Category, "record", state.Record)
	return Result{Next: models.IdleState(), Reply: promptPtr(TopMenuPrompt())}
}

func collectingWith(category models.Category, record models.Record) models.DialogueState {
	return models.DialogueState{Kind: models.StateCollectingRecord, Category: category, Record: &record}
}

func promptPtr(p Prompt) *Prompt {
	return &p
}
