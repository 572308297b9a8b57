// Package repository implements the single-owner document-store actor
// (spec.md §4.2): every room/user mutation is served by one goroutine over
// a request/reply channel, so concurrent HTTP handlers never serialize on
// a mutex across store I/O.
package repository

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gala377/Auster/internal/v1/config"
	"github.com/gala377/Auster/internal/v1/logging"
	"github.com/gala377/Auster/internal/v1/metrics"
	"go.uber.org/zap"
)

// ErrChannelClosed is returned to a caller whose request could not be
// delivered because the repository's request channel has been closed by
// Close (spec.md §4.2, §7).
var ErrChannelClosed = errors.New("repository: channel closed")

// EntryID is the opaque 12-byte identifier the document store assigns. It
// converts directly to room.ID since both are raw ObjectID bytes.
type EntryID [12]byte

// Base64 renders the id the same way room.ID does, for callers that only
// have a repository.EntryID in hand (e.g. orchestrator rollback logging).
func (id EntryID) Base64() string {
	return base64.StdEncoding.EncodeToString(id[:])
}

// RoomEntry is the persisted record returned by CreateRoom.
type RoomEntry struct {
	ID           EntryID
	Password     int64
	PlayersLimit int
}

// UserEntry is the persisted record returned by CreateRuntimeUser /
// CreatePlayerUser.
type UserEntry struct {
	Username EntryID
	Password int64
}

// requestKind distinguishes the envelope's payload; Go has no tagged-union
// sugar so the envelope carries whichever field is relevant.
type requestKind int

const (
	reqCreateRoom requestKind = iota
	reqRemoveRoom
	reqCreateRuntimeUser
	reqCreatePlayerUser
	reqClose
)

type request struct {
	kind         requestKind
	playersLimit int
	roomID       EntryID
}

// Response is the result of one request, exactly one of which is non-zero.
type Response struct {
	RoomCreated       *RoomEntry
	RoomRemoved       bool
	UserCreated       *UserEntry
	ClosingRepository bool
	Err               error
}

type envelope struct {
	req   request
	reply chan Response
}

// Repository is the handle callers hold; the actual document-store handle
// lives only inside the goroutine started by Run. mu guards closed so a
// send() can never race closeRequests(): every send holds mu for reading
// across its channel-send attempt, and closeRequests only closes requests
// once it holds mu exclusively, so the channel is never closed while a
// send is in flight on it.
type Repository struct {
	mu       sync.RWMutex
	requests chan envelope
	closed   bool
}

// CreateRoom inserts {room_pass, players_limit, curr_players: 0} and
// returns the assigned id and password (spec.md §4.2 "Create semantics").
func (r *Repository) CreateRoom(ctx context.Context, playersLimit int) (RoomEntry, error) {
	resp, err := r.send(ctx, request{kind: reqCreateRoom, playersLimit: playersLimit})
	if err != nil {
		return RoomEntry{}, err
	}
	if resp.Err != nil {
		return RoomEntry{}, resp.Err
	}
	return *resp.RoomCreated, nil
}

// RemoveRoom deletes a room record; the orchestrator calls it as its
// compensating action when room creation fails.
func (r *Repository) RemoveRoom(ctx context.Context, roomID EntryID) error {
	resp, err := r.send(ctx, request{kind: reqRemoveRoom, roomID: roomID})
	if err != nil {
		return err
	}
	return resp.Err
}

// CreateRuntimeUser creates the credential document used by a room's own
// runtime client.
func (r *Repository) CreateRuntimeUser(ctx context.Context, roomID EntryID) (UserEntry, error) {
	resp, err := r.send(ctx, request{kind: reqCreateRuntimeUser, roomID: roomID})
	if err != nil {
		return UserEntry{}, err
	}
	if resp.Err != nil {
		return UserEntry{}, resp.Err
	}
	return *resp.UserCreated, nil
}

// CreatePlayerUser creates the credential document used by one joining
// player.
func (r *Repository) CreatePlayerUser(ctx context.Context, roomID EntryID) (UserEntry, error) {
	resp, err := r.send(ctx, request{kind: reqCreatePlayerUser, roomID: roomID})
	if err != nil {
		return UserEntry{}, err
	}
	if resp.Err != nil {
		return UserEntry{}, resp.Err
	}
	return *resp.UserCreated, nil
}

// Close asks the actor to stop accepting new requests, drain in-flight
// ones, and exit (spec.md §4.2 "Close semantics"). It blocks until the
// actor acknowledges.
func (r *Repository) Close(ctx context.Context) error {
	resp, err := r.send(ctx, request{kind: reqClose})
	if err != nil {
		return err
	}
	if !resp.ClosingRepository {
		return resp.Err
	}
	return nil
}

// Ping satisfies health.Pinger without sending anything to the actor:
// since the actor has no read-only request, Ping just checks the request
// channel is still open (not yet told to Close).
func (r *Repository) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.requests == nil || r.closed {
		return ErrChannelClosed
	}
	return nil
}

func (r *Repository) send(ctx context.Context, req request) (Response, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return Response{}, ErrChannelClosed
	}

	reply := make(chan Response, 1)
	select {
	case r.requests <- envelope{req: req, reply: reply}:
		r.mu.RUnlock()
	case <-ctx.Done():
		r.mu.RUnlock()
		return Response{}, ctx.Err()
	}

	select {
	case resp, ok := <-reply:
		if !ok {
			return Response{}, ErrChannelClosed
		}
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// closeRequests closes the request channel exactly once, under the
// exclusive lock so it can never race a send() that is already holding
// the shared lock across its channel-send attempt (spec.md §4.2 "closes
// the request channel so further sends fail").
func (r *Repository) closeRequests() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.requests)
	}
}

// Run starts the actor goroutine and returns the handle callers use to
// send requests. The goroutine owns conn exclusively until Close drains
// it.
func Run(cfg *config.Config) (*Repository, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	requests := make(chan envelope, 256)
	repo := &Repository{requests: requests}

	go runLoop(conn, repo)

	return repo, nil
}

func runLoop(conn *connection, repo *Repository) {
	ctx := context.Background()
	for env := range repo.requests {
		start := time.Now()
		resp := dispatch(ctx, conn, env.req)
		observeRequest(env.req.kind, resp, start)

		select {
		case env.reply <- resp:
		default:
			// Caller already gave up on its reply channel (capacity 1,
			// buffered): discard per spec.md §4.2 "best-effort".
		}

		if env.req.kind == reqClose {
			// Stop accepting further sends by closing the channel; the
			// range loop keeps draining whatever was already enqueued
			// ahead of Close in channel order, then exits on its own.
			repo.closeRequests()
		}
	}
}

func observeRequest(kind requestKind, resp Response, start time.Time) {
	outcome := "success"
	if resp.Err != nil {
		outcome = "failure"
	}
	metrics.RepositoryRequests.WithLabelValues(kindName(kind), outcome).Inc()
	metrics.RepositoryRequestDuration.WithLabelValues(kindName(kind)).Observe(time.Since(start).Seconds())
}

func kindName(kind requestKind) string {
	switch kind {
	case reqCreateRoom:
		return "CreateRoom"
	case reqRemoveRoom:
		return "RemoveRoom"
	case reqCreateRuntimeUser:
		return "CreateRuntimeUser"
	case reqCreatePlayerUser:
		return "CreatePlayerUser"
	case reqClose:
		return "Close"
	default:
		return "Unknown"
	}
}

func dispatch(ctx context.Context, conn *connection, req request) Response {
	switch req.kind {
	case reqCreateRoom:
		entry, err := conn.createRoom(ctx, req.playersLimit)
		if err != nil {
			logging.Error(ctx, "repository: create room failed", zap.Error(err))
			return Response{Err: err}
		}
		return Response{RoomCreated: &entry}
	case reqRemoveRoom:
		if err := conn.removeRoom(ctx, req.roomID); err != nil {
			logging.Error(ctx, "repository: remove room failed", zap.Error(err))
			return Response{Err: err}
		}
		return Response{RoomRemoved: true}
	case reqCreateRuntimeUser:
		entry, err := conn.createUser(ctx, req.roomID, "rt")
		if err != nil {
			return Response{Err: err}
		}
		return Response{UserCreated: &entry}
	case reqCreatePlayerUser:
		entry, err := conn.createUser(ctx, req.roomID, "player")
		if err != nil {
			return Response{Err: err}
		}
		return Response{UserCreated: &entry}
	case reqClose:
		return Response{ClosingRepository: true}
	default:
		return Response{Err: errors.New("repository: unknown request kind")}
	}
}

// connection owns the live document-store handles, mirroring the
// original source's db.Connection.
type connection struct {
	client  *mongo.Client
	db      *mongo.Database
	users   *mongo.Collection
	rooms   *mongo.Collection
}

func connect(cfg *config.Config) (*connection, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	credential := options.Credential{
		Username:      cfg.Db.User,
		Password:      cfg.Db.Password,
		AuthSource:    cfg.Db.Database,
		AuthMechanism: "SCRAM-SHA-1",
	}

	clientOpts := options.Client().ApplyURI(cfg.Db.Host).SetAuth(credential).SetAppName("auster")

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(cfg.Db.Database)
	return &connection{
		client: client,
		db:     db,
		users:  db.Collection(cfg.Db.UsersCollection),
		rooms:  db.Collection(cfg.Db.RoomsCollection),
	}, nil
}

func (c *connection) createRoom(ctx context.Context, playersLimit int) (RoomEntry, error) {
	pass := randomInt64()

	res, err := c.rooms.InsertOne(ctx, bson.M{
		"room_pass":     pass,
		"players_limit": int64(playersLimit),
		"curr_players":  int32(0),
	})
	if err != nil {
		return RoomEntry{}, err
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return RoomEntry{}, errors.New("repository: inserted id is not an ObjectID")
	}

	return RoomEntry{ID: EntryID(oid), Password: pass, PlayersLimit: playersLimit}, nil
}

func (c *connection) removeRoom(ctx context.Context, roomID EntryID) error {
	_, err := c.rooms.DeleteOne(ctx, bson.M{"_id": primitive.ObjectID(roomID)})
	return err
}

func (c *connection) createUser(ctx context.Context, roomID EntryID, kind string) (UserEntry, error) {
	pass := randomInt64()

	res, err := c.users.InsertOne(ctx, bson.M{
		"password": pass,
		"kind":     kind,
		"room_id":  primitive.ObjectID(roomID),
	})
	if err != nil {
		return UserEntry{}, err
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return UserEntry{}, errors.New("repository: inserted id is not an ObjectID")
	}

	return UserEntry{Username: EntryID(oid), Password: pass}, nil
}

func randomInt64() int64 {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return int64(binary.BigEndian.Uint64(buf[:]))
}
