package repository

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// startFakeRepo runs a copy of runLoop's request/reply and Close-drain
// loop, with fakeDispatch in place of dispatch, so those semantics can be
// verified without a live MongoDB server.
func startFakeRepo(t *testing.T) (*Repository, *sync.WaitGroup) {
	t.Helper()
	requests := make(chan envelope, 256)
	repo := &Repository{requests: requests}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx := context.Background()
		for env := range repo.requests {
			resp := fakeDispatch(ctx, env.req)
			select {
			case env.reply <- resp:
			default:
			}
			if env.req.kind == reqClose {
				repo.closeRequests()
			}
		}
	}()

	return repo, &wg
}

func fakeDispatch(ctx context.Context, req request) Response {
	switch req.kind {
	case reqCreateRoom:
		return Response{RoomCreated: &RoomEntry{ID: EntryID{1}, Password: 42, PlayersLimit: req.playersLimit}}
	case reqRemoveRoom:
		return Response{RoomRemoved: true}
	case reqCreateRuntimeUser:
		return Response{UserCreated: &UserEntry{Username: EntryID{2}, Password: 7}}
	case reqCreatePlayerUser:
		return Response{UserCreated: &UserEntry{Username: EntryID{3}, Password: 8}}
	case reqClose:
		return Response{ClosingRepository: true}
	default:
		return Response{}
	}
}

func TestCreateRoom_ReturnsEntry(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo, wg := startFakeRepo(t)
	entry, err := repo.CreateRoom(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, entry.PlayersLimit)
	assert.Equal(t, int64(42), entry.Password)

	require.NoError(t, repo.Close(context.Background()))
	wg.Wait()

	_, err = repo.CreateRoom(context.Background(), 1)
	assert.ErrorIs(t, err, ErrChannelClosed, "sends after Close must fail, never block or succeed")
}

func TestClose_DrainsRequestsEnqueuedBeforeClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo, wg := startFakeRepo(t)

	type result struct {
		entry RoomEntry
		err   error
	}
	results := make(chan result, 3)

	var enqueue sync.WaitGroup
	enqueue.Add(3)
	for i := 0; i < 3; i++ {
		go func(limit int) {
			defer enqueue.Done()
			entry, err := repo.CreateRoom(context.Background(), limit)
			results <- result{entry, err}
		}(i + 1)
	}
	enqueue.Wait()

	require.NoError(t, repo.Close(context.Background()))
	wg.Wait()

	close(results)
	count := 0
	for r := range results {
		require.NoError(t, r.err)
		count++
	}
	assert.Equal(t, 3, count, "every request enqueued before Close must still receive a reply")
}

func TestSend_ContextCancelledBeforeAccepted(t *testing.T) {
	repo := &Repository{requests: make(chan envelope)} // unbuffered, nothing draining it

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := repo.CreateRoom(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPing_NilRequestsChannelIsUnhealthy(t *testing.T) {
	repo := &Repository{}
	err := repo.Ping(context.Background())
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestPing_HealthyWhenRunning(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo, wg := startFakeRepo(t)
	assert.NoError(t, repo.Ping(context.Background()))

	require.NoError(t, repo.Close(context.Background()))
	wg.Wait()

	assert.ErrorIs(t, repo.Ping(context.Background()), ErrChannelClosed, "Ping must report unhealthy once closed")
}

func TestKindName_CoversAllKinds(t *testing.T) {
	for _, kind := range []requestKind{reqCreateRoom, reqRemoveRoom, reqCreateRuntimeUser, reqCreatePlayerUser, reqClose} {
		assert.NotEqual(t, "Unknown", kindName(kind))
	}
}

func TestEntryID_Base64RoundTrips(t *testing.T) {
	id := EntryID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	encoded := id.Base64()
	assert.NotEmpty(t, encoded)

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, id[:], decoded)
}
