// Package runtime implements the per-room event loop: consume broker
// messages, drive the room state machine, and dispatch its outbound
// commands back to the broker (spec.md §4.3–§4.4).
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gala377/Auster/internal/v1/broker"
	"github.com/gala377/Auster/internal/v1/codec"
	"github.com/gala377/Auster/internal/v1/logging"
	"github.com/gala377/Auster/internal/v1/room"
	"go.uber.org/zap"
)

// Client is the subset of broker.Client the runtime depends on; tests
// substitute a fake to drive the loop without a live MQTT session.
type Client interface {
	Stream() <-chan *broker.Message
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
	Reconnect(ctx context.Context, clientID string, lwt broker.LastWill) error
	Disconnect()
}

// Runtime owns one Room exclusively for its lifetime: every mutation goes
// through this goroutine, which is the only place room.Process is called
// for that room.
type Runtime struct {
	client       Client
	room         *room.Room
	topicPrefix  string
	clientID     string
	lwt          broker.LastWill
}

// New builds a Runtime that will serve r over client, using topicPrefix to
// build outbound topics and clientID/lwt to re-establish the session on
// reconnect.
func New(client Client, r *room.Room, topicPrefix, clientID string, lwt broker.LastWill) *Runtime {
	return &Runtime{
		client:      client,
		room:        r,
		topicPrefix: topicPrefix,
		clientID:    clientID,
		lwt:         lwt,
	}
}

// Run drives the loop until the stream closes, the room dies, Process
// returns Abort, a reconnect is exhausted, or ctx is cancelled. The
// orchestrator calls it in its own goroutine.
func (rt *Runtime) Run(ctx context.Context) {
	roomID := rt.room.ID.Base64()
	logging.Info(ctx, "runtime started", zap.String("room_id", roomID))

	for {
		select {
		case <-ctx.Done():
			rt.client.Disconnect()
			return
		case msg, ok := <-rt.client.Stream():
			if !ok {
				logging.Warn(ctx, "runtime: broker stream closed, exiting", zap.String("room_id", roomID))
				return
			}
			if msg == nil {
				if !rt.handleReset(ctx, roomID) {
					return
				}
				continue
			}
			if !rt.handleMessage(ctx, roomID, msg) {
				return
			}
		}
	}
}

// handleReset reacts to the broker's connection-reset sentinel: if the
// session is already back up it's a stale signal, otherwise it attempts
// the bounded reconnect sequence. Returns false if the runtime should
// exit.
func (rt *Runtime) handleReset(ctx context.Context, roomID string) bool {
	if rt.client.IsConnected() {
		return true
	}
	logging.Warn(ctx, "runtime: connection reset, reconnecting", zap.String("room_id", roomID))
	if err := rt.client.Reconnect(ctx, rt.clientID, rt.lwt); err != nil {
		logging.Error(ctx, "runtime: reconnect exhausted, exiting", zap.String("room_id", roomID), zap.Error(err))
		return false
	}
	return true
}

// handleMessage parses one inbound broker message, runs it through the
// state machine, and dispatches the resulting command. Returns false if
// the command was Abort or the room has reached Dead, and the loop should
// stop.
func (rt *Runtime) handleMessage(ctx context.Context, roomID string, msg *broker.Message) bool {
	sender, err := senderFromTopic(msg.Topic)
	if err != nil {
		logging.Warn(ctx, "runtime: unparseable topic, dropping message",
			zap.String("room_id", roomID), zap.String("topic", msg.Topic), zap.Error(err))
		return true
	}

	var req codec.Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		logging.Warn(ctx, "runtime: undecodable payload, dropping message",
			zap.String("room_id", roomID), zap.Error(err))
		return true
	}

	cmd := room.Process(rt.room, sender, req)
	if !rt.dispatch(ctx, roomID, sender, cmd) {
		return false
	}
	if rt.room.State == room.Dead {
		logging.Info(ctx, "runtime: game over, exiting", zap.String("room_id", roomID))
		rt.client.Disconnect()
		return false
	}
	return true
}

// senderFromTopic extracts who sent a message from its write topic's
// third field (spec.md §4.3 step 3): "rt" is the room's own runtime
// client; anything else is parsed as a player id.
func senderFromTopic(topic string) (room.Sender, error) {
	fields := strings.Split(topic, "/")
	if len(fields) < 3 {
		return room.Sender{}, fmt.Errorf("runtime: topic %q has fewer than 3 fields", topic)
	}
	who := fields[2]
	if who == broker.RuntimeTopicSegment {
		return room.RuntimeSender(), nil
	}
	id, err := strconv.Atoi(who)
	if err != nil {
		return room.Sender{}, fmt.Errorf("runtime: topic %q has non-numeric player field: %w", topic, err)
	}
	return room.PlayerSender(codec.PlayerID(id)), nil
}

// dispatch publishes cmd's response per spec.md §4.4's dispatch rule, with
// one refinement: Err responses always route to the sender's own read
// topic (a player's numbered topic, or rt/read for the runtime sender)
// even though they aren't Priv-wrapped on the wire, since an error is only
// ever meaningful to whoever triggered it.
func (rt *Runtime) dispatch(ctx context.Context, roomID string, sender room.Sender, cmd room.Command) bool {
	switch cmd.Kind {
	case room.CommandSkip:
		return true
	case room.CommandAbort:
		logging.Warn(ctx, "runtime: aborting", zap.String("room_id", roomID), zap.String("message", cmd.AbortMessage))
		rt.client.Disconnect()
		return false
	case room.CommandRespond:
		rt.publishResponse(ctx, roomID, sender, cmd.Response)
		return true
	default:
		return true
	}
}

func (rt *Runtime) publishResponse(ctx context.Context, roomID string, sender room.Sender, resp codec.Response) {
	topic := broker.ReadTopic(rt.topicPrefix, roomID, broker.RuntimeTopicSegment)
	payload := resp

	switch {
	case resp.IsPriv():
		topic = broker.ReadTopic(rt.topicPrefix, roomID, strconv.Itoa(int(resp.PrivTarget)))
		payload = *resp.PrivInner
	case resp.IsErr() && !sender.IsRuntime:
		topic = broker.ReadTopic(rt.topicPrefix, roomID, strconv.Itoa(int(sender.PlayerID)))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logging.Error(ctx, "runtime: could not encode response", zap.String("room_id", roomID), zap.Error(err))
		return
	}

	if err := rt.client.Publish(ctx, topic, body); err != nil {
		logging.Error(ctx, "runtime: publish failed", zap.String("room_id", roomID), zap.String("topic", topic), zap.Error(err))
	}
}
