package conversation

import "strings"

// Action is what a keyword rule asks the engine to do instead of answering.
type Action string

const (
	ActionNone     Action = ""
	ActionOperator Action = "operator"
	ActionRestart  Action = "restart"
	ActionCancel   Action = "cancel"
)

type keywordRule struct {
	action   Action
	keywords []string
}

// Rules are tried in order; the first match wins. An operator request comes
// first so a client asking a human about a cancellation reaches the human.
var keywordRules = []keywordRule{
	{ActionOperator, []string{"operator", "admin", "manager", "human", "real person"}},
	{ActionRestart, []string{"start over", "reset"}},
	{ActionCancel, []string{
		"cancel",
		"changed my mind",
		"change my mind",
		"delete my booking",
		"remove my booking",
		"won't come",
		"will not come",
		"can't come",
		"cannot come",
		"can't make it",
	}},
}

// Classify matches text against the keyword rule table.
func Classify(text string) Action {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return ActionNone
	}
	for _, r := range keywordRules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.action
			}
		}
	}
	return ActionNone
}
