package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteTopic(t *testing.T) {
	assert.Equal(t, "rooms/abc123/rt/write", WriteTopic("rooms", "abc123", RuntimeTopicSegment))
	assert.Equal(t, "rooms/abc123/0/write", WriteTopic("rooms", "abc123", "0"))
}

func TestReadTopic(t *testing.T) {
	assert.Equal(t, "rooms/abc123/rt/read", ReadTopic("rooms", "abc123", RuntimeTopicSegment))
	assert.Equal(t, "rooms/abc123/1/read", ReadTopic("rooms", "abc123", "1"))
}

func TestLastWill(t *testing.T) {
	assert.Equal(t, "test/room/abc123", LastWillTopic("abc123"))
	assert.Equal(t, "Room rt abc123 lost connection", LastWillPayload("abc123"))
}

func TestDefaultSubscriptions(t *testing.T) {
	topics := DefaultSubscriptions("rooms", "abc123", 2)
	assert.Equal(t, []string{
		"rooms/abc123/rt/write",
		"rooms/abc123/0/write",
		"rooms/abc123/1/write",
	}, topics)
}

func TestDefaultSubscriptions_ZeroPlayers(t *testing.T) {
	topics := DefaultSubscriptions("rooms", "abc123", 0)
	assert.Equal(t, []string{"rooms/abc123/rt/write"}, topics)
}
