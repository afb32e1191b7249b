package ws

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/Absterrg0/Excalidraw/internal/queue"
	"github.com/Absterrg0/Excalidraw/internal/store"
	"github.com/Absterrg0/Excalidraw/pkg/auth"
)

type nullWriter struct {
	mu    sync.Mutex
	calls int
}

func (n *nullWriter) InsertChats(context.Context, []store.ChatRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

type hubFixture struct {
	srv *httptest.Server
	jwt *auth.JWT
	q   *queue.Queue
	w   *nullWriter
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	j := auth.New("test-secret")
	w := &nullWriter{}
	// Hour-long interval keeps the buffer inspectable during the test
	q := queue.New(log, w, time.Hour, 100, 20)
	hub := NewHub(log, j, NewRegistry(), q, nil)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return &hubFixture{srv: srv, jwt: j, q: q, w: w}
}

func (f *hubFixture) dial(t *testing.T, uid string) *websocket.Conn {
	t.Helper()
	tok, err := f.jwt.Sign(uid, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, f.srv.URL+"/?token="+tok, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func send(t *testing.T, c *websocket.Conn, f frame) {
	t.Helper()
	b, err := json.Marshal(f)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, b))
}

func recv(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func recvNothing(t *testing.T, c *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err, "expected no frame to arrive")
}

func TestBroadcastReachesOthersNeverSender(t *testing.T) {
	f := newHubFixture(t)
	a := f.dial(t, "alice")
	b := f.dial(t, "bob")
	c := f.dial(t, "carol")

	send(t, a, frame{Type: typeJoin, RoomID: "r1"})
	require.Equal(t, typeJoined, recv(t, a).Type)
	send(t, b, frame{Type: typeJoin, RoomID: "r1"})
	require.Equal(t, typeJoined, recv(t, b).Type)
	send(t, c, frame{Type: typeJoin, RoomID: "r1"})
	require.Equal(t, typeJoined, recv(t, c).Type)

	send(t, a, frame{Type: typeMessage, RoomID: "r1", Body: "hello"})

	got := recv(t, b)
	require.Equal(t, frame{Type: "message", RoomID: "r1", Body: "hello", UserID: "alice"}, got)
	require.Equal(t, got, recv(t, c))
	recvNothing(t, a)

	// Accepted message sits in the write-behind buffer until a flush
	require.Eventually(t, func() bool { return f.q.Depth() == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(t, 0, f.w.calls)
}

func TestDuplicateJoinGetsErrorFrame(t *testing.T) {
	f := newHubFixture(t)
	a := f.dial(t, "alice")

	send(t, a, frame{Type: typeJoin, RoomID: "r1"})
	require.Equal(t, typeJoined, recv(t, a).Type)

	send(t, a, frame{Type: typeJoin, RoomID: "r1"})
	got := recv(t, a)
	require.Equal(t, typeError, got.Type)
	require.Contains(t, got.Message, "already joined")
}

func TestMessageToUnjoinedRoomIsRejected(t *testing.T) {
	f := newHubFixture(t)
	a := f.dial(t, "alice")
	b := f.dial(t, "bob")

	send(t, b, frame{Type: typeJoin, RoomID: "r1"})
	require.Equal(t, typeJoined, recv(t, b).Type)

	send(t, a, frame{Type: typeMessage, RoomID: "r1", Body: "sneaky"})

	got := recv(t, a)
	require.Equal(t, typeError, got.Type)
	require.Contains(t, got.Message, "not a member")

	recvNothing(t, b)
	require.Equal(t, 0, f.q.Depth(), "rejected message must not be enqueued")
}

func TestLeaveStopsDelivery(t *testing.T) {
	f := newHubFixture(t)
	a := f.dial(t, "alice")
	b := f.dial(t, "bob")

	send(t, a, frame{Type: typeJoin, RoomID: "r1"})
	require.Equal(t, typeJoined, recv(t, a).Type)
	send(t, b, frame{Type: typeJoin, RoomID: "r1"})
	require.Equal(t, typeJoined, recv(t, b).Type)

	send(t, b, frame{Type: typeLeave, RoomID: "r1"})
	require.Equal(t, typeLeft, recv(t, b).Type)

	send(t, a, frame{Type: typeMessage, RoomID: "r1", Body: "anyone?"})
	recvNothing(t, b)
}

func TestUnknownFrameIsDiagnosticNotFatal(t *testing.T) {
	f := newHubFixture(t)
	a := f.dial(t, "alice")
	b := f.dial(t, "bob")

	send(t, a, frame{Type: typeJoin, RoomID: "r1"})
	require.Equal(t, typeJoined, recv(t, a).Type)
	send(t, b, frame{Type: typeJoin, RoomID: "r1"})
	require.Equal(t, typeJoined, recv(t, b).Type)

	send(t, a, frame{Type: "shape-sync", RoomID: "r1"})
	require.Equal(t, typeError, recv(t, a).Type)

	// Connection survives the bad frame and keeps working
	send(t, a, frame{Type: typeMessage, RoomID: "r1", Body: "still here"})
	require.Equal(t, "still here", recv(t, b).Body)
}

func TestPerSenderOrderingPreserved(t *testing.T) {
	f := newHubFixture(t)
	a := f.dial(t, "alice")
	b := f.dial(t, "bob")

	send(t, a, frame{Type: typeJoin, RoomID: "r1"})
	require.Equal(t, typeJoined, recv(t, a).Type)
	send(t, b, frame{Type: typeJoin, RoomID: "r1"})
	require.Equal(t, typeJoined, recv(t, b).Type)

	bodies := []string{"one", "two", "three", "four", "five"}
	for _, body := range bodies {
		send(t, a, frame{Type: typeMessage, RoomID: "r1", Body: body})
	}
	for _, body := range bodies {
		require.Equal(t, body, recv(t, b).Body)
	}
}

func TestRejectsMissingToken(t *testing.T) {
	f := newHubFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := websocket.Dial(ctx, f.srv.URL+"/?token=garbage", nil)
	require.Error(t, err)
}
