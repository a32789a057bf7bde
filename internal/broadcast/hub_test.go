package broadcast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/models"
	"github.com/noah-isme/classroom-sync-api/pkg/config"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(config.BroadcastConfig{
		SendBufferSize: 16,
		WriteTimeout:   2 * time.Second,
		PingInterval:   time.Second,
	}, nil, zap.NewNop())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeConn(w, r, r.URL.Query().Get("sender"))
	}))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialTest(t *testing.T, url, sender string) *Subscriber {
	t.Helper()
	sub, err := Dial(context.Background(), url+"?sender="+sender, sender, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func TestHubDeliversWithinRoomOnly(t *testing.T) {
	hub, url := newTestHub(t)

	alice := dialTest(t, url, "alice")
	bob := dialTest(t, url, "bob")
	carol := dialTest(t, url, "carol")

	received := make(chan string, 4)
	bob.On("class-1", models.EventRecordUpdated, func(event string, payload []byte) {
		received <- "bob:" + string(payload)
	})
	carol.On("class-2", models.EventRecordUpdated, func(event string, payload []byte) {
		received <- "carol:" + string(payload)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bob.Listen(ctx)   //nolint:errcheck
	go carol.Listen(ctx) //nolint:errcheck
	go alice.Listen(ctx) //nolint:errcheck

	require.NoError(t, alice.Join("class-1"))
	require.NoError(t, bob.Join("class-1"))
	require.NoError(t, carol.Join("class-2"))

	require.Eventually(t, func() bool {
		return hub.RoomSize("class-1") == 2 && hub.RoomSize("class-2") == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Emit("class-1", models.EventRecordUpdated, "v1", nil))

	select {
	case got := <-received:
		require.Equal(t, `bob:"v1"`, got)
	case <-time.After(2 * time.Second):
		t.Fatal("bob never received the event")
	}

	select {
	case got := <-received:
		t.Fatalf("unexpected delivery outside the room: %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHubExcludesSender(t *testing.T) {
	hub, url := newTestHub(t)

	alice := dialTest(t, url, "alice")
	bob := dialTest(t, url, "bob")

	aliceGot := make(chan struct{}, 1)
	alice.On("class-1", models.EventRecordUpdated, func(string, []byte) {
		aliceGot <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go alice.Listen(ctx) //nolint:errcheck
	go bob.Listen(ctx)   //nolint:errcheck

	require.NoError(t, alice.Join("class-1"))
	require.NoError(t, bob.Join("class-1"))
	require.Eventually(t, func() bool { return hub.RoomSize("class-1") == 2 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Emit("class-1", models.EventRecordUpdated, "self", nil))

	select {
	case <-aliceGot:
		t.Fatal("sender received its own event")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestHubAckOnDelivery(t *testing.T) {
	hub, url := newTestHub(t)

	grader := dialTest(t, url, "grader")
	student := dialTest(t, url, "student")

	student.On("class-1", models.EventSubmissionUpdated, func(string, []byte) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go grader.Listen(ctx)  //nolint:errcheck
	go student.Listen(ctx) //nolint:errcheck

	require.NoError(t, grader.Join("class-1"))
	require.NoError(t, student.Join("class-1"))
	require.Eventually(t, func() bool { return hub.RoomSize("class-1") == 2 },
		2*time.Second, 10*time.Millisecond)

	acked := make(chan struct{}, 1)
	require.NoError(t, grader.Emit("class-1", models.EventSubmissionUpdated, "graded",
		func() { acked <- struct{}{} }))

	select {
	case <-acked:
	case <-time.After(2 * time.Second):
		t.Fatal("ack never arrived")
	}
}

func TestHubIgnoresEventWithoutMembership(t *testing.T) {
	hub, url := newTestHub(t)

	outsider := dialTest(t, url, "outsider")
	insider := dialTest(t, url, "insider")

	got := make(chan struct{}, 1)
	insider.On("class-1", models.EventRecordUpdated, func(string, []byte) {
		got <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go insider.Listen(ctx)  //nolint:errcheck
	go outsider.Listen(ctx) //nolint:errcheck

	require.NoError(t, insider.Join("class-1"))
	require.Eventually(t, func() bool { return hub.RoomSize("class-1") == 1 },
		2*time.Second, 10*time.Millisecond)

	// Never joined class-1, so the hub must drop the event.
	require.NoError(t, outsider.Emit("class-1", models.EventRecordUpdated, "sneak", nil))

	select {
	case <-got:
		t.Fatal("event from non-member was delivered")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestHubServerPublish(t *testing.T) {
	hub, url := newTestHub(t)

	client := dialTest(t, url, "client")

	var mu sync.Mutex
	var payloads []string
	client.On("class-1", models.EventRecordCreated, func(event string, payload []byte) {
		mu.Lock()
		payloads = append(payloads, string(payload))
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Listen(ctx) //nolint:errcheck

	require.NoError(t, client.Join("class-1"))
	require.Eventually(t, func() bool { return hub.RoomSize("class-1") == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish("class-1", models.EventRecordCreated, map[string]string{"id": "r1"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(payloads) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.JSONEq(t, `{"id":"r1"}`, payloads[0])
	mu.Unlock()
}

func TestSubscriberHandlerReplacement(t *testing.T) {
	hub, url := newTestHub(t)

	sender := dialTest(t, url, "sender")
	receiver := dialTest(t, url, "receiver")

	hits := make(chan string, 4)
	receiver.On("class-1", models.EventRecordUpdated, func(string, []byte) { hits <- "first" })
	receiver.On("class-1", models.EventRecordUpdated, func(string, []byte) { hits <- "second" })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sender.Listen(ctx)   //nolint:errcheck
	go receiver.Listen(ctx) //nolint:errcheck

	require.NoError(t, sender.Join("class-1"))
	require.NoError(t, receiver.Join("class-1"))
	require.Eventually(t, func() bool { return hub.RoomSize("class-1") == 2 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, sender.Emit("class-1", models.EventRecordUpdated, "x", nil))

	select {
	case got := <-hits:
		require.Equal(t, "second", got, "later registration must replace the earlier one")
	case <-time.After(2 * time.Second):
		t.Fatal("handler never fired")
	}

	select {
	case <-hits:
		t.Fatal("both handlers fired for one event")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHubDeliveredObserver(t *testing.T) {
	hub, url := newTestHub(t)

	var mu sync.Mutex
	counts := map[string]int{}
	hub.OnDelivered(func(event string, count int) {
		mu.Lock()
		counts[event] += count
		mu.Unlock()
	})

	a := dialTest(t, url, "a")
	b := dialTest(t, url, "b")

	b.On("class-1", models.EventRecordDeleted, func(string, []byte) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Listen(ctx) //nolint:errcheck
	go b.Listen(ctx) //nolint:errcheck

	require.NoError(t, a.Join("class-1"))
	require.NoError(t, b.Join("class-1"))
	require.Eventually(t, func() bool { return hub.RoomSize("class-1") == 2 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Emit("class-1", models.EventRecordDeleted, "gone", nil))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts[models.EventRecordDeleted] == 1
	}, 2*time.Second, 10*time.Millisecond)
}
