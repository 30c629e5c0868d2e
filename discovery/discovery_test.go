package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnnounceAndParse_RoundTrip(t *testing.T) {
	msg := Announce("sw-1", "tcp://10.0.0.1:5555")
	ann, ok := Parse(msg)
	assert.True(t, ok)
	assert.Equal(t, "sw-1", ann.WorkerID)
	assert.Equal(t, "tcp://10.0.0.1:5555", ann.Address)
}

func TestParse_AddressWithMultipleColonsSurvivesSplit(t *testing.T) {
	// Regression for the naive split(":") bug: a "scheme://host:port"
	// address has more than one colon, so the split must cap at 3 fields.
	msg := "WORKER_ANNOUNCE:sw-2:tcp://192.168.1.10:6001"
	ann, ok := Parse(msg)
	assert.True(t, ok)
	assert.Equal(t, "sw-2", ann.WorkerID)
	assert.Equal(t, "tcp://192.168.1.10:6001", ann.Address)
}

func TestParse_WrongPrefixRejected(t *testing.T) {
	_, ok := Parse("SOMETHING_ELSE:sw-1:tcp://127.0.0.1:5555")
	assert.False(t, ok)
}

func TestParse_MalformedMessageRejected(t *testing.T) {
	_, ok := Parse("not a valid announcement")
	assert.False(t, ok)

	_, ok = Parse("WORKER_ANNOUNCE:onlyworkerid")
	assert.False(t, ok)
}
