package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sigweihq/waas-connector/pkg/constants"
)

// WebSocketTransport talks to the hosted wallet over a websocket.
// The connection is dialed lazily on first use and re-dialed after it drops.
type WebSocketTransport struct {
	walletURL string
	dialer    *websocket.Dialer
	header    http.Header
	logger    *slog.Logger

	// dialMu serializes dials; mu only guards state and is never held across I/O
	dialMu sync.Mutex

	mu            sync.Mutex
	conn          *websocket.Conn
	pending       map[string]chan *Message
	walletAddress string

	writeMu sync.Mutex
}

var _ Transport = (*WebSocketTransport)(nil)

// Option configures a WebSocketTransport
type Option func(*WebSocketTransport)

// WithLogger sets the transport logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *WebSocketTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithDialer replaces the websocket dialer
func WithDialer(dialer *websocket.Dialer) Option {
	return func(t *WebSocketTransport) {
		if dialer != nil {
			t.dialer = dialer
		}
	}
}

// WithHeader sets extra headers sent on the websocket handshake
func WithHeader(header http.Header) Option {
	return func(t *WebSocketTransport) {
		t.header = header.Clone()
	}
}

// NewWebSocketTransport creates a transport for the wallet at walletURL.
// http(s) URLs are mapped to ws(s).
func NewWebSocketTransport(walletURL string, opts ...Option) (*WebSocketTransport, error) {
	wsURL, err := toWebSocketURL(walletURL)
	if err != nil {
		return nil, err
	}

	t := &WebSocketTransport{
		walletURL: wsURL,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: constants.WalletDialTimeout,
		},
		logger:  slog.Default(),
		pending: make(map[string]chan *Message),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func toWebSocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse wallet URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported wallet URL scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("wallet URL has no host: %q", raw)
	}
	return u.String(), nil
}

// WalletAddress implements Transport
func (t *WebSocketTransport) WalletAddress() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.walletAddress
}

// Connect implements Transport
func (t *WebSocketTransport) Connect(ctx context.Context) (*ConnectResponse, error) {
	resp, err := t.roundTrip(ctx, &Message{Type: MessageConnect})
	if err != nil {
		return nil, fmt.Errorf("wallet connect failed: %w", err)
	}

	var result ConnectResponse
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, fmt.Errorf("failed to decode connect response: %w", err)
		}
	}
	if result.WalletAddress == "" {
		return nil, ErrNoWalletAddress
	}

	t.mu.Lock()
	t.walletAddress = result.WalletAddress
	t.mu.Unlock()

	t.logger.Info("wallet session established", "walletAddress", result.WalletAddress)
	return &result, nil
}

// Disconnect implements Transport. The wallet is notified on a best-effort basis.
func (t *WebSocketTransport) Disconnect(ctx context.Context) {
	t.mu.Lock()
	t.walletAddress = ""
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return
	}

	msg := &Message{ID: uuid.NewString(), Type: MessageDisconnect}
	if err := t.write(ctx, conn, msg); err != nil {
		t.logger.Debug("failed to notify wallet of disconnect", "error", err)
	}
	t.closeConn(conn)
}

// SendRequest implements Transport
func (t *WebSocketTransport) SendRequest(ctx context.Context, method string, params []any, chainID uint64) (*Response, error) {
	resp, err := t.roundTrip(ctx, &Message{
		Type:    MessageRequest,
		Method:  method,
		Params:  params,
		ChainID: chainID,
	})
	if err != nil {
		return nil, err
	}

	return &Response{Code: resp.Code, Data: resp.Data}, nil
}

// Close drops the websocket connection without ending the wallet session
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		t.closeConn(conn)
	}
	return nil
}

// roundTrip sends msg and waits for the response carrying the same id
func (t *WebSocketTransport) roundTrip(ctx context.Context, msg *Message) (*Message, error) {
	conn, err := t.ensureConn(ctx)
	if err != nil {
		return nil, err
	}

	msg.ID = uuid.NewString()
	ch := make(chan *Message, 1)

	t.mu.Lock()
	t.pending[msg.ID] = ch
	t.mu.Unlock()

	if err := t.write(ctx, conn, msg); err != nil {
		t.forget(msg.ID)
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrTransportClosed
		}
		if resp.Error != "" {
			return nil, &WalletError{Method: methodName(msg), Message: resp.Error}
		}
		return resp, nil
	case <-ctx.Done():
		t.forget(msg.ID)
		return nil, ctx.Err()
	}
}

func methodName(msg *Message) string {
	if msg.Method != "" {
		return msg.Method
	}
	return string(msg.Type)
}

func (t *WebSocketTransport) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	t.dialMu.Lock()
	defer t.dialMu.Unlock()

	if conn := t.currentConn(); conn != nil {
		return conn, nil
	}

	conn, _, err := t.dialer.DialContext(ctx, t.walletURL, t.header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet transport: %w", err)
	}
	conn.SetReadLimit(constants.MaxMessageSize)

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	go t.readLoop(conn)

	t.logger.Debug("wallet transport connected", "url", t.walletURL)
	return conn, nil
}

func (t *WebSocketTransport) currentConn() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *WebSocketTransport) write(ctx context.Context, conn *websocket.Conn, msg *Message) error {
	deadline := time.Now().Add(constants.WalletWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write %s message: %w", msg.Type, err)
	}
	return nil
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Debug("wallet transport read failed", "error", err)
			}
			t.dropConn(conn)
			return
		}

		switch msg.Type {
		case MessageResponse:
			t.deliver(&msg)
		case MessageEvent:
			t.handleEvent(&msg)
		default:
			t.logger.Warn("ignoring unexpected wallet message", "type", msg.Type, "id", msg.ID)
		}
	}
}

func (t *WebSocketTransport) deliver(msg *Message) {
	t.mu.Lock()
	ch, ok := t.pending[msg.ID]
	delete(t.pending, msg.ID)
	t.mu.Unlock()

	if !ok {
		t.logger.Debug("dropping response for unknown request", "id", msg.ID)
		return
	}
	ch <- msg
}

func (t *WebSocketTransport) handleEvent(msg *Message) {
	switch msg.Event {
	case EventWalletDisconnected:
		t.mu.Lock()
		t.walletAddress = ""
		t.mu.Unlock()
		t.logger.Info("wallet session ended by wallet")
	case EventWalletAddressChanged:
		var data ConnectResponse
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			t.logger.Warn("invalid wallet address event", "error", err)
			return
		}
		t.mu.Lock()
		t.walletAddress = data.WalletAddress
		t.mu.Unlock()
	default:
		t.logger.Debug("ignoring wallet event", "event", msg.Event)
	}
}

func (t *WebSocketTransport) forget(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

func (t *WebSocketTransport) closeConn(conn *websocket.Conn) {
	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()

	_ = conn.Close()
	t.dropConn(conn)
}

// dropConn forgets conn and fails every request still waiting on it
func (t *WebSocketTransport) dropConn(conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != conn {
		return
	}
	t.conn = nil
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
}
