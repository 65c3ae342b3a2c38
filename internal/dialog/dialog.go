// Package dialog implements the intake dialogue state machine.
//
// The package owns the fixed token vocabulary the bot recognizes, the prompt
// texts and suggested-reply keyboards for every step, and the pure transition
// function that advances a session's dialogue state.
package dialog

import "github.com/frol/connect-volunteers-bot/internal/models"

// Tokens the transition function recognizes. Anything else is an unrecognized
// input and re-issues the current step's prompt unchanged.
const (
	TokenOfferHelp   = "I can help"
	TokenRequestHelp = "I need help"

	TokenProvidingDriver        = "I'm a driver with my own car"
	TokenProvidingCollectingAid = "I can collect humanitarian or financial aid"
	TokenProvidingUsefulContact = "Useful contacts"

	TokenNeedEvacuation      = "Evacuation"
	TokenNeedHumanitarianAid = "I need humanitarian aid"

	TokenConfirmYes = "Yes, send it to the volunteers"
	TokenConfirmNo  = "No, start over"

	// TokenEmptyComment is the placeholder a participant may send when there is
	// nothing to add as a comment.
	TokenEmptyComment = "-"
)

// Prompt is the outbound side of one transition: the reply text plus the
// suggested replies the transport should offer. An empty SuggestedReplies
// slice clears any previously shown keyboard.
type Prompt struct {
	Text             string
	SuggestedReplies []string
}

func topMenuKeyboard() []string {
	return []string{TokenOfferHelp, TokenRequestHelp}
}

func provideMenuKeyboard() []string {
	return []string{TokenProvidingDriver, TokenProvidingCollectingAid, TokenProvidingUsefulContact}
}

func requestMenuKeyboard() []string {
	return []string{TokenNeedEvacuation, TokenNeedHumanitarianAid}
}

func confirmKeyboard() []string {
	return []string{TokenConfirmYes, TokenConfirmNo}
}

// TopMenuPrompt is the prompt shown in the idle state and whenever a session
// is reset.
func TopMenuPrompt() Prompt {
	return Prompt{
		Text:             `Choose "` + TokenOfferHelp + `" or "` + TokenRequestHelp + `".`,
		SuggestedReplies: topMenuKeyboard(),
	}
}

func provideMenuPrompt() Prompt {
	return Prompt{
		Text: "We coordinate drivers helping with evacuation, collection of humanitarian aid, " +
			"and we are always open to useful contacts. Choose one of the options.",
		SuggestedReplies: provideMenuKeyboard(),
	}
}

func requestMenuPrompt() Prompt {
	return Prompt{
		Text:             "We currently coordinate evacuation and humanitarian aid requests.",
		SuggestedReplies: requestMenuKeyboard(),
	}
}

func fullNamePrompt() Prompt {
	return Prompt{Text: "What is your full name?"}
}

func phoneNumbersPrompt() Prompt {
	return Prompt{Text: "What phone numbers can we reach you at?"}
}

func addressPrompt() Prompt {
	return Prompt{Text: "What is your address?"}
}

func commentPrompt() Prompt {
	return Prompt{Text: `Any additional comment? (If there is nothing to add, send "` + TokenEmptyComment + `".)`}
}

func confirmationPrompt(r models.Record) Prompt {
	return Prompt{
		Text: "Here is the information we collected:\n" +
			"Full name: " + r.FullName + "\n" +
			"Phone numbers: " + r.PhoneNumbers + "\n" +
			"Address: " + r.Address + "\n" +
			"Comment: " + r.Comment + "\n\n" +
			"Do you want to send this request to the volunteers?",
		SuggestedReplies: confirmKeyboard(),
	}
}

func confirmationRepeatPrompt() Prompt {
	return Prompt{
		Text: `Do you want to send this request to the volunteers? (Reply with "` +
			TokenConfirmYes + `" or "` + TokenConfirmNo + `".)`,
		SuggestedReplies: confirmKeyboard(),
	}
}

func submittedPrompt() Prompt {
	return Prompt{
		Text: "Thank you! Your information has been sent to the volunteers.\n\n" +
			"They will get in touch with you. You can also submit another request.",
		SuggestedReplies: topMenuKeyboard(),
	}
}

func cancelledPrompt() Prompt {
	return Prompt{
		Text:             "Okay, your request has been cancelled. You can start over.",
		SuggestedReplies: topMenuKeyboard(),
	}
}
