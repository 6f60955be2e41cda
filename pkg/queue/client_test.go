package queue

import (
	"testing"

	"github.com/ValerySidorin/arcxml/pkg/queue/message"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisherDisabled(t *testing.T) {
	pub, err := NewPublisher(Config{}, log.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, pub)
	assert.NoError(t, pub.Pub(ChannelName, &message.Message{Index: 1, Entries: 100}))
	assert.NoError(t, pub.Close())
}

func TestNewPublisherInvalidType(t *testing.T) {
	_, err := NewPublisher(Config{Type: "kafka"}, log.NewNopLogger())
	assert.Error(t, err)
}
