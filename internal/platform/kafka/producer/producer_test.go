package producer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
}

func TestToRecord(t *testing.T) {
	rec := toRecord(&Message{
		Topic:   "wallet.feed",
		Key:     []byte("agent-1"),
		Value:   []byte(`{"version":1}`),
		Headers: map[string]string{"content-type": "application/json"},
	})

	assert.Equal(t, "wallet.feed", rec.Topic)
	assert.Equal(t, []byte("agent-1"), rec.Key)
	assert.Equal(t, []byte(`{"version":1}`), rec.Value)
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, "content-type", rec.Headers[0].Key)
	assert.Equal(t, []byte("application/json"), rec.Headers[0].Value)
}

func TestClosedProducerRejectsMessages(t *testing.T) {
	// The client dials lazily, so no broker is needed here.
	p, err := New(DefaultConfig("127.0.0.1:1"), nil)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "close is idempotent")

	err = p.Produce(context.Background(), &Message{Topic: "t"})
	require.Error(t, err)
	assert.False(t, p.Healthy(context.Background()))
}
