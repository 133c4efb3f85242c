package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aieducate/livesession/domain/entities"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type recordedFrame struct {
	messageType int
	payload     []byte
}

// testAgent is a fake remote tutor backed by httptest
type testAgent struct {
	server *httptest.Server

	mu       sync.Mutex
	upgrades int
	paths    []string
	conns    []*websocket.Conn

	frames chan recordedFrame
}

func newTestAgent(t *testing.T) *testAgent {
	t.Helper()
	agent := &testAgent{frames: make(chan recordedFrame, 16)}
	agent.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		agent.mu.Lock()
		agent.upgrades++
		agent.paths = append(agent.paths, r.URL.Path)
		agent.conns = append(agent.conns, conn)
		agent.mu.Unlock()

		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			agent.frames <- recordedFrame{messageType: messageType, payload: payload}
		}
	}))
	t.Cleanup(agent.server.Close)
	return agent
}

func (a *testAgent) url() string {
	return "ws" + strings.TrimPrefix(a.server.URL, "http")
}

func (a *testAgent) upgradeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.upgrades
}

func (a *testAgent) lastConn() *websocket.Conn {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.conns) == 0 {
		return nil
	}
	return a.conns[len(a.conns)-1]
}

func (a *testAgent) recvFrame(t *testing.T) recordedFrame {
	t.Helper()
	select {
	case f := <-a.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for frame")
		return recordedFrame{}
	}
}

func newTestClient(baseURL string) (*Client, *clock.Mock) {
	mock := clock.NewMock()
	return NewClient(baseURL, 5*time.Second, mock, zap.NewNop()), mock
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnectAndSendText(t *testing.T) {
	agent := newTestAgent(t)
	client, _ := newTestClient(agent.url())
	defer client.Disconnect()

	if err := client.Connect(context.Background(), "7", "42"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if client.Status() != entities.ConnectionStatusConnected {
		t.Fatalf("Expected connected, got %s", client.Status())
	}

	agent.mu.Lock()
	path := agent.paths[0]
	agent.mu.Unlock()
	if path != "/ws/7/42" {
		t.Errorf("Expected path /ws/7/42, got %s", path)
	}

	client.SendText("hi")
	frame := agent.recvFrame(t)
	if frame.messageType != websocket.TextMessage {
		t.Errorf("Expected text frame, got type %d", frame.messageType)
	}
	if string(frame.payload) != `{"type":"text","text":"hi"}` {
		t.Errorf("Unexpected payload: %s", frame.payload)
	}
}

func TestSendImageAndAudioFrames(t *testing.T) {
	agent := newTestAgent(t)
	client, _ := newTestClient(agent.url())
	defer client.Disconnect()

	if err := client.Connect(context.Background(), "7", "42"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	client.SendImage("QUJD", "image/jpeg")
	frame := agent.recvFrame(t)
	if string(frame.payload) != `{"type":"image","mimeType":"image/jpeg","data":"QUJD"}` {
		t.Errorf("Unexpected image payload: %s", frame.payload)
	}

	chunk := []byte{1, 2, 3, 4}
	client.SendAudio(chunk)
	frame = agent.recvFrame(t)
	if frame.messageType != websocket.BinaryMessage {
		t.Errorf("Expected binary frame, got type %d", frame.messageType)
	}
	if string(frame.payload) != string(chunk) {
		t.Errorf("Unexpected audio payload: %v", frame.payload)
	}
}

func TestSendWhileDisconnectedDrops(t *testing.T) {
	client, _ := newTestClient("ws://127.0.0.1:1")

	// None of these may panic or error; frames are dropped with a log entry
	client.SendAudio([]byte{1, 2})
	client.SendText("hi")
	client.SendImage("QUJD", "image/jpeg")
}

func TestConnectWhenConnectedIsNoop(t *testing.T) {
	agent := newTestAgent(t)
	client, _ := newTestClient(agent.url())
	defer client.Disconnect()

	if err := client.Connect(context.Background(), "7", "42"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := client.Connect(context.Background(), "7", "42"); err != nil {
		t.Errorf("Second Connect should be a no-op, got %v", err)
	}
	if agent.upgradeCount() != 1 {
		t.Errorf("Expected a single upgrade, got %d", agent.upgradeCount())
	}
}

func TestConnectDuringDialKeepsSingleConnection(t *testing.T) {
	// The first handshake is held back so a second Connect can race it
	var mu sync.Mutex
	var conns []*websocket.Conn
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		first := requests == 1
		mu.Unlock()
		if first {
			time.Sleep(300 * time.Millisecond)
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns = append(conns, conn)
		mu.Unlock()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, _ := newTestClient("ws" + strings.TrimPrefix(server.URL, "http"))

	events := make(chan entities.AgentEvent, 4)
	client.OnEvent(func(ev entities.AgentEvent) { events <- ev })

	go client.Connect(context.Background(), "7", "42")
	time.Sleep(100 * time.Millisecond)
	if err := client.Connect(context.Background(), "7", "42"); err != nil {
		t.Fatalf("Second Connect failed: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(conns) == 2
	}, "both upgrades did not complete")

	client.Disconnect()
	if client.Status() != entities.ConnectionStatusDisconnected {
		t.Fatalf("Expected disconnected, got %s", client.Status())
	}

	// Only one dial result may have been installed; the superseded socket is
	// closed, so a write on either server-side handle reaches no subscriber.
	mu.Lock()
	held := append([]*websocket.Conn(nil), conns...)
	mu.Unlock()
	for _, conn := range held {
		conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})
	}

	time.Sleep(100 * time.Millisecond)
	select {
	case ev := <-events:
		t.Errorf("Event delivered after Disconnect: %+v", ev)
	default:
	}
}

func TestBinaryMessageYieldsPureAudioEvent(t *testing.T) {
	agent := newTestAgent(t)
	client, _ := newTestClient(agent.url())
	defer client.Disconnect()

	events := make(chan entities.AgentEvent, 4)
	client.OnEvent(func(ev entities.AgentEvent) { events <- ev })

	if err := client.Connect(context.Background(), "7", "42"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	payload := []byte{9, 8, 7}
	if err := agent.lastConn().WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.Fatalf("server write failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != entities.EventAudio {
			t.Errorf("Expected audio event, got %s", ev.Kind)
		}
		if string(ev.Audio) != string(payload) {
			t.Errorf("Unexpected audio bytes: %v", ev.Audio)
		}
		if ev.Text != "" || ev.AudioBase64 != "" {
			t.Error("Binary event must not populate text fields")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for audio event")
	}
}

func TestMalformedJSONNeverReachesSubscribers(t *testing.T) {
	agent := newTestAgent(t)
	client, _ := newTestClient(agent.url())
	defer client.Disconnect()

	events := make(chan entities.AgentEvent, 4)
	client.OnEvent(func(ev entities.AgentEvent) { events <- ev })

	if err := client.Connect(context.Background(), "7", "42"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	conn := agent.lastConn()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{broken`)); err != nil {
		t.Fatalf("server write failed: %v", err)
	}
	// A valid message after the bad one still arrives: the connection and
	// subsequent processing are unaffected
	if err := conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"outputTranscription":{"text":"ok","finished":true}}`)); err != nil {
		t.Fatalf("server write failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Text != "ok" {
			t.Errorf("Expected the valid message only, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")
	}

	select {
	case ev := <-events:
		t.Errorf("Unexpected extra event: %+v", ev)
	default:
	}
}

func TestListenerOrderAndUnsubscribe(t *testing.T) {
	agent := newTestAgent(t)
	client, _ := newTestClient(agent.url())
	defer client.Disconnect()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{}, 4)

	unsubFirst := client.OnEvent(func(entities.AgentEvent) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	client.OnEvent(func(entities.AgentEvent) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		done <- struct{}{}
	})

	if err := client.Connect(context.Background(), "7", "42"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	conn := agent.lastConn()
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1}); err != nil {
		t.Fatalf("server write failed: %v", err)
	}
	<-done

	mu.Lock()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("Expected registration-order delivery, got %v", order)
	}
	order = nil
	mu.Unlock()

	unsubFirst()
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{2}); err != nil {
		t.Fatalf("server write failed: %v", err)
	}
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 1 || order[0] != "second" {
		t.Errorf("Expected only the remaining listener, got %v", order)
	}
}

func TestOnStatusChangeInvokedImmediately(t *testing.T) {
	client, _ := newTestClient("ws://127.0.0.1:1")

	var got []entities.ConnectionStatus
	client.OnStatusChange(func(s entities.ConnectionStatus) {
		got = append(got, s)
	})

	if len(got) != 1 || got[0] != entities.ConnectionStatusDisconnected {
		t.Errorf("Expected immediate disconnected callback, got %v", got)
	}
}

func TestStaleStatusNotificationSuppressed(t *testing.T) {
	client, _ := newTestClient("ws://127.0.0.1:1")

	var mu sync.Mutex
	var got []entities.ConnectionStatus
	client.OnStatusChange(func(s entities.ConnectionStatus) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	// Two transitions whose notifications run out of order, the way a
	// registration-time snapshot can trail a concurrent transition
	client.mu.Lock()
	notifyConnecting := client.setStatusLocked(entities.ConnectionStatusConnecting)
	notifyConnected := client.setStatusLocked(entities.ConnectionStatusConnected)
	client.mu.Unlock()

	notifyConnected()
	notifyConnecting()

	mu.Lock()
	defer mu.Unlock()
	want := []entities.ConnectionStatus{
		entities.ConnectionStatusDisconnected,
		entities.ConnectionStatusConnected,
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Expected %v with the stale notification dropped, got %v", want, got)
	}
}

func TestBackoffDelays(t *testing.T) {
	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		10000 * time.Millisecond,
	}
	for attempt, w := range want {
		if got := backoffDelay(attempt); got != w {
			t.Errorf("Attempt %d: expected %v, got %v", attempt, w, got)
		}
	}
}

func TestReconnectGivesUpAfterCap(t *testing.T) {
	// Nothing listens on this address; every dial fails immediately
	client, mock := newTestClient("ws://127.0.0.1:1")

	if err := client.Connect(context.Background(), "7", "42"); err == nil {
		t.Fatal("Expected Connect to fail")
	}
	waitFor(t, func() bool { return client.ReconnectAttempts() == 1 },
		"first reconnect was not scheduled")

	for i := 2; i <= maxReconnectAttempts; i++ {
		mock.Add(reconnectMaxDelay)
		attempt := i
		waitFor(t, func() bool { return client.ReconnectAttempts() == attempt },
			"reconnect attempt was not scheduled")
	}

	// The cap is reached: advancing time further schedules nothing new
	mock.Add(time.Minute)
	time.Sleep(50 * time.Millisecond)
	if client.ReconnectAttempts() != maxReconnectAttempts {
		t.Errorf("Expected attempts to stay at %d, got %d",
			maxReconnectAttempts, client.ReconnectAttempts())
	}
	if client.Status() != entities.ConnectionStatusDisconnected {
		t.Errorf("Expected disconnected after giving up, got %s", client.Status())
	}

	client.mu.Lock()
	timer := client.reconnectTimer
	client.mu.Unlock()
	if timer != nil {
		t.Error("Expected no pending reconnect timer after the cap")
	}
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	agent := newTestAgent(t)
	client, mock := newTestClient(agent.url())

	if err := client.Connect(context.Background(), "7", "42"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Server drops the connection: a reconnect gets scheduled
	agent.lastConn().Close()
	waitFor(t, func() bool { return client.ReconnectAttempts() == 1 },
		"reconnect was not scheduled after server close")

	client.Disconnect()
	mock.Add(time.Minute)
	time.Sleep(50 * time.Millisecond)

	if agent.upgradeCount() != 1 {
		t.Errorf("Expected no further connection attempts, got %d upgrades", agent.upgradeCount())
	}
	if client.Status() != entities.ConnectionStatusDisconnected {
		t.Errorf("Expected disconnected, got %s", client.Status())
	}

	// Disconnect is idempotent
	client.Disconnect()
}

func TestSuccessfulReconnectResetsAttempts(t *testing.T) {
	agent := newTestAgent(t)
	client, mock := newTestClient(agent.url())
	defer client.Disconnect()

	if err := client.Connect(context.Background(), "7", "42"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	agent.lastConn().Close()
	waitFor(t, func() bool { return client.ReconnectAttempts() == 1 },
		"reconnect was not scheduled after server close")

	mock.Add(reconnectBaseDelay)
	waitFor(t, func() bool { return client.Status() == entities.ConnectionStatusConnected },
		"client did not reconnect")

	if client.ReconnectAttempts() != 0 {
		t.Errorf("Expected attempt counter reset, got %d", client.ReconnectAttempts())
	}
	if agent.upgradeCount() != 2 {
		t.Errorf("Expected 2 upgrades, got %d", agent.upgradeCount())
	}
}
