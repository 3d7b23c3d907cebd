package conversation_test

import (
	"testing"

	"github.com/aretw0/concierge/pkg/conversation"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want conversation.Action
	}{
		{"Can I talk to an operator?", conversation.ActionOperator},
		{"please call the ADMIN", conversation.ActionOperator},
		{"I need a manager", conversation.ActionOperator},
		{"let me speak to a human", conversation.ActionOperator},
		{"I want a real person", conversation.ActionOperator},
		{"can a manager cancel it?", conversation.ActionOperator},
		{"let's start over", conversation.ActionRestart},
		{"reset", conversation.ActionRestart},
		{"Cancel my booking please", conversation.ActionCancel},
		{"I changed my mind", conversation.ActionCancel},
		{"please delete my booking", conversation.ActionCancel},
		{"remove my booking", conversation.ActionCancel},
		{"sorry, I won't come", conversation.ActionCancel},
		{"I will not come tomorrow", conversation.ActionCancel},
		{"I can't come", conversation.ActionCancel},
		{"I cannot come", conversation.ActionCancel},
		{"I can't make it", conversation.ActionCancel},
		{"A manicure tomorrow at 12, please", conversation.ActionNone},
		{"", conversation.ActionNone},
		{"   ", conversation.ActionNone},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, conversation.Classify(tt.text))
		})
	}
}
