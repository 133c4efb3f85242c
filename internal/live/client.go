package live

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aieducate/livesession/domain/entities"
)

const (
	// Time allowed to write a message to the agent
	writeWait = 10 * time.Second

	reconnectBaseDelay   = time.Second
	reconnectMaxDelay    = 10 * time.Second
	maxReconnectAttempts = 5
)

// EventHandler consumes normalized inbound agent events
type EventHandler func(entities.AgentEvent)

// StatusHandler consumes connection status transitions
type StatusHandler func(entities.ConnectionStatus)

type eventSub struct {
	id int
	fn EventHandler
}

type statusSub struct {
	id int
	fn StatusHandler

	// lastSeq is the newest status sequence delivered to this subscriber,
	// guarded by the client mutex. -1 until the first delivery.
	lastSeq int64
}

// Client owns the single persistent WebSocket to the remote tutoring agent.
// Outbound audio/image/text frames go through the send methods; inbound
// frames are classified and normalized into entities.AgentEvent and fanned
// out to subscribers in registration order. A dropped connection is retried
// with exponential backoff up to a fixed attempt cap; an explicit Disconnect
// cancels any pending retry.
//
// The socket handle is exclusively owned by the Client. Consumers never read
// or write it directly.
type Client struct {
	logger         *zap.Logger
	clk            clock.Clock
	baseURL        string
	dialer         *websocket.Dialer
	connectTimeout time.Duration

	mu             sync.Mutex
	conn           *websocket.Conn
	status         entities.ConnectionStatus
	userID         string
	sessionID      string
	attempts       int
	reconnectTimer *clock.Timer
	manual         bool

	// gorilla/websocket allows one concurrent writer
	writeMu sync.Mutex

	eventSubs  []eventSub
	statusSubs []*statusSub
	statusSeq  int64
	nextSubID  int
}

// NewClient creates a client for the agent at baseURL (e.g. ws://host:8004)
func NewClient(baseURL string, connectTimeout time.Duration, clk clock.Clock, logger *zap.Logger) *Client {
	return &Client{
		logger:         logger,
		clk:            clk,
		baseURL:        strings.TrimRight(baseURL, "/"),
		dialer:         websocket.DefaultDialer,
		connectTimeout: connectTimeout,
	}
}

// Status returns the current connection status
func (c *Client) Status() entities.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentStatusLocked()
}

func (c *Client) currentStatusLocked() entities.ConnectionStatus {
	if c.status == "" {
		return entities.ConnectionStatusDisconnected
	}
	return c.status
}

// ReconnectAttempts returns how many backoff retries have been consumed
// since the last successful connect.
func (c *Client) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect opens the socket to the agent for the given identity pair. It
// returns once the socket is open, or an error if the dial fails; a failed
// dial still schedules a backoff retry. No-op if already connected.
func (c *Client) Connect(ctx context.Context, userID, sessionID string) error {
	c.mu.Lock()
	if c.status == entities.ConnectionStatusConnected {
		c.mu.Unlock()
		return nil
	}
	c.userID = userID
	c.sessionID = sessionID
	c.manual = false
	c.stopReconnectLocked()
	notify := c.setStatusLocked(entities.ConnectionStatusConnecting)
	c.mu.Unlock()
	notify()

	return c.dial(ctx)
}

// dial performs one connection attempt using the stored identity pair
func (c *Client) dial(ctx context.Context) error {
	c.mu.Lock()
	u := fmt.Sprintf("%s/ws/%s/%s", c.baseURL, c.userID, c.sessionID)
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(dialCtx, u, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.logger.Error("Live connection failed", zap.String("url", u), zap.Error(err))
		c.mu.Lock()
		notifyErr := c.setStatusLocked(entities.ConnectionStatusError)
		notifyDown := c.setStatusLocked(entities.ConnectionStatusDisconnected)
		if !c.manual {
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
		notifyErr()
		notifyDown()
		return fmt.Errorf("failed to connect to agent: %w", err)
	}

	c.mu.Lock()
	if c.manual || c.conn != nil {
		// Disconnect was requested or another dial already won while this
		// one was in flight; the late result is closed, never installed.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.attempts = 0
	notify := c.setStatusLocked(entities.ConnectionStatusConnected)
	c.mu.Unlock()
	notify()

	c.logger.Info("Live connection established", zap.String("url", u))
	go c.readLoop(conn)
	return nil
}

// Disconnect cancels any pending reconnect, closes the socket if present,
// and resets the status to disconnected. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manual = true
	c.stopReconnectLocked()
	conn := c.conn
	c.conn = nil
	notify := c.setStatusLocked(entities.ConnectionStatusDisconnected)
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(writeWait)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}
	notify()
}

// SendAudio transmits a raw PCM chunk as one binary frame. Dropped with a
// log entry when not connected; send failures surface through the status,
// never as errors to the caller.
func (c *Client) SendAudio(chunk []byte) {
	conn := c.connectedConn()
	if conn == nil {
		c.logger.Debug("Dropping audio chunk, not connected")
		return
	}
	c.writeMessage(conn, websocket.BinaryMessage, chunk)
}

type outboundText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outboundImage struct {
	Type     string `json:"type"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// SendText transmits a user text message as one JSON text frame
func (c *Client) SendText(text string) {
	c.sendJSON(outboundText{Type: "text", Text: text})
}

// SendImage transmits one base64 image frame with its MIME type
func (c *Client) SendImage(data, mimeType string) {
	c.sendJSON(outboundImage{Type: "image", MimeType: mimeType, Data: data})
}

func (c *Client) sendJSON(v interface{}) {
	conn := c.connectedConn()
	if conn == nil {
		c.logger.Debug("Dropping outbound frame, not connected")
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode outbound frame", zap.Error(err))
		return
	}
	c.writeMessage(conn, websocket.TextMessage, payload)
}

func (c *Client) connectedConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != entities.ConnectionStatusConnected {
		return nil
	}
	return c.conn
}

func (c *Client) writeMessage(conn *websocket.Conn, messageType int, payload []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(messageType, payload); err != nil {
		c.logger.Error("Failed to write frame", zap.Error(err))
	}
}

// OnEvent registers a listener for every normalized inbound event. Listeners
// run synchronously in registration order. The returned function removes the
// listener.
func (c *Client) OnEvent(fn EventHandler) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.eventSubs = append(c.eventSubs, eventSub{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i := range c.eventSubs {
			if c.eventSubs[i].id == id {
				c.eventSubs = append(c.eventSubs[:i], c.eventSubs[i+1:]...)
				break
			}
		}
	}
}

// OnStatusChange registers a listener invoked immediately with the current
// status and again on every transition. The returned function removes it.
func (c *Client) OnStatusChange(fn StatusHandler) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	sub := &statusSub{id: id, fn: fn, lastSeq: -1}
	c.statusSubs = append(c.statusSubs, sub)
	current := c.currentStatusLocked()
	seq := c.statusSeq
	c.mu.Unlock()

	c.deliverStatus(sub, current, seq)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i := range c.statusSubs {
			if c.statusSubs[i].id == id {
				c.statusSubs = append(c.statusSubs[:i], c.statusSubs[i+1:]...)
				break
			}
		}
	}
}

// setStatusLocked updates the status and returns a closure that notifies
// subscribers. The closure must be called after releasing the mutex so
// handlers are free to call back into the client.
func (c *Client) setStatusLocked(status entities.ConnectionStatus) func() {
	if c.currentStatusLocked() == status {
		return func() {}
	}
	c.status = status
	c.statusSeq++
	seq := c.statusSeq
	subs := make([]*statusSub, len(c.statusSubs))
	copy(subs, c.statusSubs)
	return func() {
		for _, s := range subs {
			c.deliverStatus(s, status, seq)
		}
	}
}

// deliverStatus invokes the handler unless a newer status already reached
// this subscriber, so a registration-time snapshot or a delayed notification
// can never land after a later transition.
func (c *Client) deliverStatus(s *statusSub, status entities.ConnectionStatus, seq int64) {
	c.mu.Lock()
	if seq <= s.lastSeq {
		c.mu.Unlock()
		return
	}
	s.lastSeq = seq
	c.mu.Unlock()
	s.fn(status)
}

func (c *Client) dispatch(ev entities.AgentEvent) {
	c.mu.Lock()
	subs := make([]eventSub, len(c.eventSubs))
	copy(subs, c.eventSubs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// readLoop pumps inbound frames until the socket drops, then hands off to
// the reconnect machinery unless the close was requested locally.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("Live socket closed unexpectedly", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.BinaryMessage:
			// Pure audio event: no text parsing, no other fields
			c.dispatch(entities.AgentEvent{Kind: entities.EventAudio, Audio: payload})
		case websocket.TextMessage:
			events, err := normalizeMessage(payload, c.logger)
			if err != nil {
				// Malformed messages never reach subscribers
				c.logger.Warn("Dropping unparseable agent message", zap.Error(err))
				continue
			}
			for _, ev := range events {
				c.dispatch(ev)
			}
		default:
			c.logger.Warn("Received unknown frame type", zap.Int("type", messageType))
		}
	}

	conn.Close()

	c.mu.Lock()
	if c.conn != conn {
		// A newer connection or an explicit Disconnect already took over
		c.mu.Unlock()
		return
	}
	c.conn = nil
	notify := c.setStatusLocked(entities.ConnectionStatusDisconnected)
	if !c.manual {
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()
	notify()
}

func (c *Client) stopReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) scheduleReconnectLocked() {
	if c.attempts >= maxReconnectAttempts {
		// Give up silently; the status stays disconnected until the user
		// reconnects manually
		c.logger.Warn("Reconnect attempts exhausted", zap.Int("attempts", c.attempts))
		return
	}
	delay := backoffDelay(c.attempts)
	c.attempts++
	c.logger.Info("Scheduling reconnect",
		zap.Duration("delay", delay),
		zap.Int("attempt", c.attempts))
	c.reconnectTimer = c.clk.AfterFunc(delay, c.reconnect)
}

func (c *Client) reconnect() {
	c.mu.Lock()
	c.reconnectTimer = nil
	if c.manual || c.status == entities.ConnectionStatusConnected {
		c.mu.Unlock()
		return
	}
	notify := c.setStatusLocked(entities.ConnectionStatusConnecting)
	c.mu.Unlock()
	notify()

	if err := c.dial(context.Background()); err != nil {
		c.logger.Warn("Reconnect attempt failed", zap.Error(err))
	}
}

// backoffDelay returns min(base * 2^attempt, max)
func backoffDelay(attempt int) time.Duration {
	delay := reconnectBaseDelay << uint(attempt)
	if delay > reconnectMaxDelay {
		delay = reconnectMaxDelay
	}
	return delay
}
