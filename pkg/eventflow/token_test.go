package eventflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_CancelFirstWins(t *testing.T) {
	tok := NewToken()
	calls := 0
	tok.AddListener(func() { calls++ })

	tok.Cancel("first", false)
	tok.Cancel("second", true)

	require.True(t, tok.IsCancelled())
	assert.Equal(t, &CancelData{Reason: "first", Retriable: false}, tok.CancelData())
	assert.Equal(t, 1, calls)
}

func TestToken_PauseResume(t *testing.T) {
	tok := NewToken()
	calls := 0
	tok.AddListener(func() { calls++ })

	tok.Pause()
	tok.Pause()
	assert.True(t, tok.IsPaused())
	tok.Resume()
	assert.False(t, tok.IsPaused())
	assert.Equal(t, 2, calls, "repeated pause does not notify")
}

func TestToken_Reset(t *testing.T) {
	tok := NewToken()
	tok.Cancel("stop", true)
	tok.Pause()

	tok.Reset()

	assert.False(t, tok.IsCancelled())
	assert.False(t, tok.IsPaused())
	assert.Nil(t, tok.CancelData())
}

func TestToken_RemoveListener(t *testing.T) {
	tok := NewToken()
	calls := 0
	remove := tok.AddListener(func() { calls++ })
	remove()

	tok.Cancel("stop", true)
	assert.Zero(t, calls)
}

func TestToken_NilSafe(t *testing.T) {
	var tok *Token
	assert.False(t, tok.IsCancelled())
	assert.False(t, tok.IsPaused())
	assert.Nil(t, tok.CancelData())
}
