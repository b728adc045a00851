package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRank(t *testing.T) {
	assert.Less(t, StatusDeposit.Rank(), StatusVoting.Rank())
	assert.Less(t, StatusVoting.Rank(), StatusPassed.Rank())
	assert.Equal(t, StatusPassed.Rank(), StatusRejected.Rank())
	assert.Equal(t, StatusRejected.Rank(), StatusFailed.Rank())
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, StatusDeposit.IsTerminal())
	assert.False(t, StatusVoting.IsTerminal())
	assert.True(t, StatusPassed.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestLaterOf(t *testing.T) {
	assert.Equal(t, StatusVoting, LaterOf(StatusDeposit, StatusVoting))
	assert.Equal(t, StatusVoting, LaterOf(StatusVoting, StatusDeposit))
	assert.Equal(t, StatusPassed, LaterOf(StatusVoting, StatusPassed))
}
