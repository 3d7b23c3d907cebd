package admin

import (
	"testing"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Rules(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"/stats", Command{Kind: KindStats}},
		{"/admin", Command{Kind: KindStats}},
		{"/dashboard", Command{Kind: KindDashboard}},
		{"/approve 12", Command{Kind: KindApprove, ID: 12}},
		{"/ok #12", Command{Kind: KindApprove, ID: 12}},
		{"/reject 7", Command{Kind: KindReject, ID: 7}},
		{"/no 7", Command{Kind: KindReject, ID: 7}},
		{"/connect +7 (701) 123-45-67", Command{Kind: KindConnect, Arg: "77011234567"}},
		{"/close", Command{Kind: KindClose}},
		{"/update-name Anna Maria", Command{Kind: KindUpdateName, Arg: "Anna Maria"}},
		{"/update_name Dana", Command{Kind: KindUpdateName, Arg: "Dana"}},
		{"/my-info", Command{Kind: KindMyInfo}},
		{"/myinfo", Command{Kind: KindMyInfo}},
		{"  /APPROVE 3  ", Command{Kind: KindApprove, ID: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok, err := Parse(tt.in, true)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_NotCommands(t *testing.T) {
	for _, in := range []string{"hello", "/unknown", "stats please", ""} {
		t.Run(in, func(t *testing.T) {
			_, ok, err := Parse(in, true)
			assert.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestParse_UsageErrors(t *testing.T) {
	for _, in := range []string{"/approve", "/approve abc", "/reject -1", "/connect", "/connect 12", "/update-name"} {
		t.Run(in, func(t *testing.T) {
			_, ok, err := Parse(in, true)
			assert.True(t, ok)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestParse_BareOperatorLines(t *testing.T) {
	cmd, ok, err := Parse("connect 77011234567", false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Command{Kind: KindConnect, Arg: "77011234567"}, cmd)

	cmd, ok, err = Parse("close", false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindClose, cmd.Kind)

	// Sentences that merely start with a command word are relayed, not executed.
	for _, in := range []string{"approve it tomorrow please", "close to the metro", "no, we are closed on Sunday"} {
		_, ok, err := Parse(in, false)
		assert.NoError(t, err, in)
		assert.False(t, ok, in)
	}

	_, ok, _ = Parse("connect 77011234567", true)
	assert.False(t, ok, "clients must use the slash form")
}

func TestCommand_OperatorOnly(t *testing.T) {
	assert.True(t, Command{Kind: KindApprove}.OperatorOnly())
	assert.True(t, Command{Kind: KindConnect}.OperatorOnly())
	assert.False(t, Command{Kind: KindMyInfo}.OperatorOnly())
	assert.False(t, Command{Kind: KindUpdateName}.OperatorOnly())
}

func TestUsage(t *testing.T) {
	assert.Contains(t, Usage(true), "/approve <id>")
	assert.NotContains(t, Usage(false), "/approve")
	assert.Contains(t, Usage(false), "/my-info")
}
