package amqp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerChangedMessageRoundTrip(t *testing.T) {
	msg := NewLedgerChangedMessage("casa", 42)
	assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Second)

	data, err := msg.ToJSON()
	require.NoError(t, err)

	got, err := LedgerChangedMessageFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "casa", got.LedgerID)
	assert.Equal(t, uint64(42), got.Seq)
	assert.True(t, got.Timestamp.Equal(msg.Timestamp))
}

func TestLedgerChangedMessageFromJSONInvalid(t *testing.T) {
	_, err := LedgerChangedMessageFromJSON([]byte("not json"))
	assert.Error(t, err)
}
