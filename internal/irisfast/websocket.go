package irisfast

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrNotConnected = errors.New("websocket not connected")

type MessageCallback func(message *Message)

type StateCallback func(state WebSocketState)

// WebSocket keeps one connection to the Iris event stream, redialing with
// backoff after the connection drops.
type WebSocket struct {
	wsURL        string
	headers      HeaderProvider
	maxReconnect int
	pingInterval time.Duration
	readLimit    int64
	logger       *zap.Logger

	mu    sync.RWMutex
	conn  *websocket.Conn
	state WebSocketState

	// wsjson.Write must not run concurrently on one conn.
	writeMu sync.Mutex

	cbMu     sync.RWMutex
	nextCbID int
	msgCbs   []msgEntry
	stateCbs []stateEntry

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type msgEntry struct {
	id int
	cb MessageCallback
}

type stateEntry struct {
	id int
	cb StateCallback
}

func NewWebSocket(wsURL string, maxReconnectAttempts int, logger *zap.Logger) *WebSocket {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocket{
		wsURL:        wsURL,
		maxReconnect: maxReconnectAttempts,
		pingInterval: 30 * time.Second,
		readLimit:    1 << 20,
		logger:       logger,
		state:        WSStateDisconnected,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetHeaderProvider injects handshake headers. Call before Connect.
func (ws *WebSocket) SetHeaderProvider(h HeaderProvider) { ws.headers = h }

func (ws *WebSocket) State() WebSocketState {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.state
}

// Connect dials once and starts the read loop. Later drops are redialed in
// the background up to maxReconnectAttempts times.
func (ws *WebSocket) Connect(ctx context.Context) error {
	switch ws.State() {
	case WSStateConnected, WSStateConnecting, WSStateReconnecting:
		return nil
	}
	if ws.ctx.Err() != nil {
		return errors.New("websocket closed")
	}
	ws.setState(WSStateConnecting)

	conn, err := ws.dial(ctx)
	if err != nil {
		ws.setState(WSStateFailed)
		return err
	}
	ws.attach(conn)

	ws.wg.Add(1)
	go ws.run(conn)
	return nil
}

func (ws *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, ws.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      ws.buildHeaders(),
	})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(ws.readLimit)
	return conn, nil
}

func (ws *WebSocket) attach(conn *websocket.Conn) {
	ws.mu.Lock()
	ws.conn = conn
	ws.mu.Unlock()
	ws.setState(WSStateConnected)
}

func (ws *WebSocket) detach(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	ws.mu.Lock()
	if ws.conn == conn {
		ws.conn = nil
	}
	ws.mu.Unlock()
	_ = conn.Close(code, reason)
}

func (ws *WebSocket) run(conn *websocket.Conn) {
	defer ws.wg.Done()
	for {
		ws.serve(conn)
		ws.detach(conn, websocket.StatusGoingAway, "reconnect")
		if ws.ctx.Err() != nil {
			ws.setState(WSStateDisconnected)
			return
		}
		ws.setState(WSStateReconnecting)
		conn = ws.redial()
		if conn == nil {
			if ws.ctx.Err() != nil {
				ws.setState(WSStateDisconnected)
			} else {
				ws.setState(WSStateFailed)
			}
			return
		}
		ws.attach(conn)
	}
}

func (ws *WebSocket) redial() *websocket.Conn {
	for attempt := 1; attempt <= ws.maxReconnect; attempt++ {
		if err := sleepCtx(ws.ctx, backoffDuration(attempt)); err != nil {
			return nil
		}
		conn, err := ws.dial(ws.ctx)
		if err == nil {
			ws.logger.Info("ws_reconnect", zap.Int("attempt", attempt))
			return conn
		}
		ws.logger.Warn("ws_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil
}

// serve reads frames until the connection fails.
func (ws *WebSocket) serve(conn *websocket.Conn) {
	pctx, stopPing := context.WithCancel(ws.ctx)
	defer stopPing()
	ws.wg.Add(1)
	go ws.pingLoop(pctx, conn)

	for {
		var msg Message
		if err := wsjson.Read(ws.ctx, conn, &msg); err != nil {
			if ws.ctx.Err() == nil {
				ws.logger.Warn("ws_read_failed", zap.Error(err))
			}
			return
		}
		ws.dispatch(&msg)
	}
}

func (ws *WebSocket) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer ws.wg.Done()
	t := time.NewTicker(ws.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				// unblocks the reader, which triggers a redial
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (ws *WebSocket) dispatch(msg *Message) {
	ws.cbMu.RLock()
	cbs := make([]msgEntry, len(ws.msgCbs))
	copy(cbs, ws.msgCbs)
	ws.cbMu.RUnlock()
	for _, e := range cbs {
		e.cb(msg)
	}
}

// WriteJSON sends one frame on the current connection.
func (ws *WebSocket) WriteJSON(ctx context.Context, v any) error {
	ws.mu.RLock()
	conn, state := ws.conn, ws.state
	ws.mu.RUnlock()
	if conn == nil || state != WSStateConnected {
		return ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	return wsjson.Write(ctx, conn, v)
}

func (ws *WebSocket) OnMessage(cb MessageCallback) int {
	if cb == nil {
		return 0
	}
	ws.cbMu.Lock()
	defer ws.cbMu.Unlock()
	ws.nextCbID++
	ws.msgCbs = append(ws.msgCbs, msgEntry{id: ws.nextCbID, cb: cb})
	return ws.nextCbID
}

func (ws *WebSocket) RemoveMessageCallback(id int) {
	ws.cbMu.Lock()
	defer ws.cbMu.Unlock()
	for i, e := range ws.msgCbs {
		if e.id == id {
			ws.msgCbs = append(ws.msgCbs[:i], ws.msgCbs[i+1:]...)
			return
		}
	}
}

func (ws *WebSocket) OnStateChange(cb StateCallback) int {
	if cb == nil {
		return 0
	}
	ws.cbMu.Lock()
	defer ws.cbMu.Unlock()
	ws.nextCbID++
	ws.stateCbs = append(ws.stateCbs, stateEntry{id: ws.nextCbID, cb: cb})
	return ws.nextCbID
}

func (ws *WebSocket) RemoveStateCallback(id int) {
	ws.cbMu.Lock()
	defer ws.cbMu.Unlock()
	for i, e := range ws.stateCbs {
		if e.id == id {
			ws.stateCbs = append(ws.stateCbs[:i], ws.stateCbs[i+1:]...)
			return
		}
	}
}

func (ws *WebSocket) setState(state WebSocketState) {
	ws.mu.Lock()
	changed := ws.state != state
	ws.state = state
	ws.mu.Unlock()
	if !changed {
		return
	}

	ws.cbMu.RLock()
	cbs := make([]stateEntry, len(ws.stateCbs))
	copy(cbs, ws.stateCbs)
	ws.cbMu.RUnlock()
	for _, e := range cbs {
		e.cb(state)
	}
}

// Close stops reconnecting, closes the connection and waits for the
// background goroutines or ctx, whichever comes first.
func (ws *WebSocket) Close(ctx context.Context) error {
	ws.closeOnce.Do(func() {
		ws.cancel()
		ws.mu.RLock()
		conn := ws.conn
		ws.mu.RUnlock()
		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "close")
		}
	})

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (ws *WebSocket) buildHeaders() http.Header {
	hdr := http.Header{}
	if ws.headers == nil {
		return hdr
	}
	for k, v := range ws.headers() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
