package domain

import "fmt"

// Stage is the position of a session in the dialogue.
type Stage string

const (
	// StageGreeting is the implicit stage of a new or reset session.
	StageGreeting Stage = "greeting"
	// StageAwaitingNameAndPhone waits for the client to introduce themselves.
	StageAwaitingNameAndPhone Stage = "awaiting_name_and_phone"
	// StageAwaitingPhoneOnly has a name and still needs a phone number.
	StageAwaitingPhoneOnly Stage = "awaiting_phone_only"
	// StageConversation is the steady state where bookings are negotiated.
	StageConversation Stage = "conversation"
)

// stageTransitions lists every allowed move. Reset to greeting is always allowed.
var stageTransitions = map[Stage][]Stage{
	StageGreeting:             {StageGreeting, StageAwaitingNameAndPhone},
	StageAwaitingNameAndPhone: {StageAwaitingNameAndPhone, StageAwaitingPhoneOnly, StageConversation, StageGreeting},
	StageAwaitingPhoneOnly:    {StageAwaitingPhoneOnly, StageConversation, StageGreeting},
	StageConversation:         {StageConversation, StageGreeting},
}

// Stages returns all stages in dialogue order.
func Stages() []Stage {
	return []Stage{StageGreeting, StageAwaitingNameAndPhone, StageAwaitingPhoneOnly, StageConversation}
}

// Valid reports whether s is one of the defined stages.
func (s Stage) Valid() bool {
	_, ok := stageTransitions[s]
	return ok
}

// CanTransition reports whether the table allows moving from s to next.
func (s Stage) CanTransition(next Stage) bool {
	for _, allowed := range stageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStage converts a persisted value back into a Stage.
// Unknown values are rejected instead of being coerced.
func ParseStage(v string) (Stage, error) {
	s := Stage(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown stage %q", ErrInvalidInput, v)
	}
	return s, nil
}
