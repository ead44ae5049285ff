package report

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/superengineer/overlaywatch/internal/envelope"
)

// ParentSink forwards envelopes to the parent collector over a WebSocket
// connection. Each envelope is written as one text message; no
// acknowledgment is awaited and a failed write is not retried.
type ParentSink struct {
	url  string
	conn *websocket.Conn
	log  logrus.FieldLogger
	mu   sync.Mutex
}

// DialParent connects to the parent collector at the given ws:// or wss://
// URL.
func DialParent(url string, log logrus.FieldLogger) (*ParentSink, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to parent collector %s: %w", url, err)
	}
	return &ParentSink{url: url, conn: conn, log: log}, nil
}

// Send writes the envelope to the parent connection.
func (p *ParentSink) Send(env *envelope.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to deliver envelope to %s: %w", p.url, err)
	}
	return nil
}

// Close sends a close frame and tears down the connection.
func (p *ParentSink) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Best-effort close handshake; the connection is dropped regardless.
	_ = p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return p.conn.Close()
}
