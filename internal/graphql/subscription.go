package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Subprotocol is the graphql-ws project's transport protocol name.
const Subprotocol = "graphql-transport-ws"

const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
)

type message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is one item of a subscription stream: either data or a terminal error.
type Event struct {
	Data json.RawMessage
	Err  error
}

type Subscription struct {
	id     string
	conn   *websocket.Conn
	events chan Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Events is closed when the stream ends for any reason.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close stops the subscription and waits for its goroutines to exit.
func (s *Subscription) Close() error {
	s.stop(true)
	s.wg.Wait()
	return nil
}

// Subscribe opens a WebSocket to the resolved endpoint and starts req. The
// subscription ends on server complete/error, on Close, or when ctx is done.
func (c *Client) Subscribe(ctx context.Context, req Request) (*Subscription, error) {
	endpoint, err := c.resolver.Endpoint(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve graphql endpoint: %w", err)
	}
	wsURL, err := websocketURL(endpoint)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Subprotocols:     []string{Subprotocol},
		HandshakeTimeout: handshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	s := &Subscription{
		id:     uuid.NewString(),
		conn:   conn,
		events: make(chan Event),
		done:   make(chan struct{}),
	}

	if err := s.handshake(tokenFrom(ctx)); err != nil {
		conn.Close()
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("encode subscription: %w", err)
	}
	if err := s.write(message{ID: s.id, Type: msgSubscribe, Payload: payload}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send subscribe: %w", err)
	}

	s.wg.Add(2)
	go s.readLoop()
	go func() {
		defer s.wg.Done()
		select {
		case <-ctx.Done():
			s.stop(true)
		case <-s.done:
		}
	}()
	return s, nil
}

func (s *Subscription) handshake(token string) error {
	var init message
	init.Type = msgConnectionInit
	if token != "" {
		init.Payload, _ = json.Marshal(map[string]string{"Authorization": "Bearer " + token})
	}
	if err := s.write(init); err != nil {
		return fmt.Errorf("send connection_init: %w", err)
	}

	_ = s.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		var m message
		if err := s.conn.ReadJSON(&m); err != nil {
			return fmt.Errorf("await connection_ack: %w", err)
		}
		switch m.Type {
		case msgConnectionAck:
			return nil
		case msgPing:
			if err := s.write(message{Type: msgPong}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected %q before connection_ack", m.Type)
		}
	}
}

func (s *Subscription) readLoop() {
	defer s.wg.Done()
	defer close(s.events)

	for {
		var m message
		if err := s.conn.ReadJSON(&m); err != nil {
			select {
			case <-s.done:
			default:
				s.emit(Event{Err: fmt.Errorf("subscription read: %w", err)})
			}
			s.stop(false)
			return
		}

		switch m.Type {
		case msgPing:
			_ = s.write(message{Type: msgPong})
		case msgNext:
			if m.ID != s.id {
				continue
			}
			var r response
			if err := json.Unmarshal(m.Payload, &r); err != nil {
				s.emit(Event{Err: fmt.Errorf("decode subscription payload: %w", err)})
				continue
			}
			if len(r.Errors) > 0 {
				s.emit(Event{Err: &ResponseError{Errors: r.Errors}})
				continue
			}
			s.emit(Event{Data: r.Data})
		case msgError:
			var errs []Error
			if err := json.Unmarshal(m.Payload, &errs); err != nil {
				errs = []Error{{Message: string(m.Payload)}}
			}
			s.emit(Event{Err: &ResponseError{Errors: errs}})
			s.stop(false)
			return
		case msgComplete:
			s.stop(false)
			return
		}
	}
}

func (s *Subscription) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// stop tears the connection down once. sendComplete tells the server we are
// leaving; it is skipped when the server ended the stream itself.
func (s *Subscription) stop(sendComplete bool) {
	s.closeOnce.Do(func() {
		close(s.done)
		if sendComplete {
			_ = s.write(message{ID: s.id, Type: msgComplete})
			_ = s.writeClose()
		}
		_ = s.conn.Close()
	})
}

func (s *Subscription) write(m message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(m)
}

func (s *Subscription) writeClose() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout),
	)
}

func websocketURL(endpoint string) (string, error) {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://"), nil
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://"), nil
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		return endpoint, nil
	}
	return "", errors.New("graphql: unsupported endpoint scheme: " + endpoint)
}
