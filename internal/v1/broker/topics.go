package broker

import "fmt"

// RuntimeTopicSegment is the "who" segment used for global, runtime-owned
// traffic (spec.md §3's Topic grammar).
const RuntimeTopicSegment = "rt"

// WriteTopic is the inbound topic a client publishes to: who can be "rt"
// or a player index.
func WriteTopic(prefix, roomID, who string) string {
	return fmt.Sprintf("%s/%s/%s/write", prefix, roomID, who)
}

// ReadTopic is the outbound topic the runtime publishes to.
func ReadTopic(prefix, roomID, who string) string {
	return fmt.Sprintf("%s/%s/%s/read", prefix, roomID, who)
}

// LastWillTopic is the LWT topic published when a room's client
// disconnects uncleanly.
func LastWillTopic(roomID string) string {
	return fmt.Sprintf("test/room/%s", roomID)
}

// LastWillPayload is the fixed LWT payload text (spec.md §4.1).
func LastWillPayload(roomID string) string {
	return fmt.Sprintf("Room rt %s lost connection", roomID)
}

// DefaultSubscriptions returns every write topic a room runtime must
// subscribe to at creation time: the global rt topic plus one per player
// slot 0..playersLimit-1 (spec.md §4.5 step 6).
func DefaultSubscriptions(prefix, roomID string, playersLimit int) []string {
	topics := make([]string, 0, playersLimit+1)
	topics = append(topics, WriteTopic(prefix, roomID, RuntimeTopicSegment))
	for i := 0; i < playersLimit; i++ {
		topics = append(topics, WriteTopic(prefix, roomID, fmt.Sprintf("%d", i)))
	}
	return topics
}
