// Package orchestrator implements the compensating-transaction room
// creation flow (spec.md §4.5): persist a room record, stand up its
// broker session, announce it, and spawn its runtime — rolling back the
// persisted record on any failure after it was created.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/gala377/Auster/internal/v1/broker"
	"github.com/gala377/Auster/internal/v1/codec"
	"github.com/gala377/Auster/internal/v1/config"
	"github.com/gala377/Auster/internal/v1/logging"
	"github.com/gala377/Auster/internal/v1/metrics"
	"github.com/gala377/Auster/internal/v1/repository"
	"github.com/gala377/Auster/internal/v1/room"
	"github.com/gala377/Auster/internal/v1/runtime"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("auster/orchestrator")

// ErrRoomCreationFailed wraps every CreateNewRoom failure. A failure of
// CreateRoom itself is wrapped directly; a failure after CreateRoom is
// wrapped once a compensating RemoveRoom has been attempted.
var ErrRoomCreationFailed = errors.New("orchestrator: room creation failed")

// NewRoomRequest is the orchestrator's input, decoded from the HTTP body.
type NewRoomRequest struct {
	PlayersLimit int
	RoundsLimit  int
}

// NewRoomResponse is returned to the HTTP caller on success.
type NewRoomResponse struct {
	ID       string
	Password int64
}

// Repository is the subset of *repository.Repository the orchestrator
// needs.
type Repository interface {
	CreateRoom(ctx context.Context, playersLimit int) (repository.RoomEntry, error)
	RemoveRoom(ctx context.Context, roomID repository.EntryID) error
}

// Broker is the full surface the orchestrator needs from a room's broker
// session: the setup steps (Connect/Subscribe/Publish) plus whatever
// runtime.Client needs to keep serving the room afterward.
type Broker interface {
	runtime.Client
	Connect(ctx context.Context, clientID string, lwt broker.LastWill) error
	Subscribe(topics []string) error
}

// Orchestrator holds the dependencies CreateNewRoom needs to run the full
// compensating-transaction flow.
type Orchestrator struct {
	repo        Repository
	newClient   func() Broker
	topicPrefix string
}

// New builds an Orchestrator wired against the given repository handle
// and broker connection parameters from config.
func New(repo Repository, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		repo:        repo,
		newClient:   func() Broker { return broker.NewClient(cfg.Mqtt.Host, cfg.Mqtt.User, cfg.Mqtt.Password) },
		topicPrefix: cfg.Runtime.RoomChannelPrefix,
	}
}

// CreateNewRoom runs the full protocol from spec.md §4.5, steps 1-9,
// compensating with RemoveRoom on any failure after step 1.
func (o *Orchestrator) CreateNewRoom(ctx context.Context, req NewRoomRequest) (NewRoomResponse, error) {
	ctx, span := tracer.Start(ctx, "auster.room.create")
	defer span.End()
	span.SetAttributes(
		attribute.Int("room.players_limit", req.PlayersLimit),
		attribute.Int("room.rounds_limit", req.RoundsLimit),
	)

	entry, err := o.repo.CreateRoom(ctx, req.PlayersLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "CreateRoom failed")
		metrics.RoomCreations.WithLabelValues("failure").Inc()
		return NewRoomResponse{}, fmt.Errorf("%w: %s", ErrRoomCreationFailed, err)
	}

	roomID := room.ID(entry.ID)
	roomIDBase64 := roomID.Base64()
	span.SetAttributes(attribute.String("room.id", roomIDBase64))

	client, runErr := o.startBrokerSession(ctx, roomIDBase64, req.PlayersLimit)
	if runErr != nil {
		o.rollback(ctx, entry.ID)
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "broker session setup failed")
		metrics.RoomCreations.WithLabelValues("failure").Inc()
		return NewRoomResponse{}, fmt.Errorf("%w: %s", ErrRoomCreationFailed, runErr)
	}

	r := room.New(roomID, entry.Password, req.PlayersLimit, req.RoundsLimit)
	rt := runtime.New(client, r, o.topicPrefix, clientID(roomIDBase64), lastWill(roomIDBase64))
	metrics.ActiveRooms.Inc()
	go func() {
		rt.Run(context.Background())
		metrics.ActiveRooms.Dec()
	}()

	metrics.RoomCreations.WithLabelValues("success").Inc()

	logging.Info(ctx, "room created", zap.String("room_id", roomIDBase64), zap.Int("players_limit", req.PlayersLimit))

	return NewRoomResponse{ID: roomIDBase64, Password: entry.Password}, nil
}

// startBrokerSession performs steps 3-7 of the protocol: build, connect,
// subscribe, and announce. Any failure here requires the caller to roll
// back the already-created repository record.
func (o *Orchestrator) startBrokerSession(ctx context.Context, roomIDBase64 string, playersLimit int) (Broker, error) {
	client := o.newClient()

	id := clientID(roomIDBase64)
	lwt := lastWill(roomIDBase64)

	if err := client.Connect(ctx, id, lwt); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	topics := broker.DefaultSubscriptions(o.topicPrefix, roomIDBase64, playersLimit)
	if err := client.Subscribe(topics); err != nil {
		client.Disconnect()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	announce := codec.Broadcast(codec.ResponseRuntimeStarted)
	payload, err := announce.MarshalJSON()
	if err != nil {
		client.Disconnect()
		return nil, fmt.Errorf("encode announce: %w", err)
	}

	readTopic := broker.ReadTopic(o.topicPrefix, roomIDBase64, broker.RuntimeTopicSegment)
	if err := client.Publish(ctx, readTopic, payload); err != nil {
		client.Disconnect()
		return nil, fmt.Errorf("publish announce: %w", err)
	}

	return client, nil
}

// rollback best-effort removes the repository record created in step 1;
// errors are logged, never propagated (spec.md §4.5's rollback rule).
func (o *Orchestrator) rollback(ctx context.Context, roomID repository.EntryID) {
	metrics.RoomRollbacks.Inc()
	if err := o.repo.RemoveRoom(ctx, roomID); err != nil {
		logging.Error(ctx, "orchestrator: compensating RemoveRoom failed",
			zap.String("room_id", room.ID(roomID).Base64()), zap.Error(err))
	}
}

func clientID(roomIDBase64 string) string {
	return "room-rt-" + roomIDBase64
}

func lastWill(roomIDBase64 string) broker.LastWill {
	return broker.LastWill{
		Topic:   broker.LastWillTopic(roomIDBase64),
		Payload: broker.LastWillPayload(roomIDBase64),
	}
}
