package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3"
)

// Default realtime settings.
const (
	DefaultHeartBeat = 4 * time.Second
	maxFrameBytes    = 1 << 20
)

// stompSubprotocols are offered during the WebSocket handshake.
var stompSubprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// StompDialer connects to a STOMP broker over a raw WebSocket endpoint.
type StompDialer struct {
	URL       string
	HeartBeat time.Duration
	Header    http.Header
}

// Dial performs the WebSocket handshake and the STOMP CONNECT exchange.
func (d StompDialer) Dial(ctx context.Context) (Session, error) {
	ws, _, err := websocket.Dial(ctx, d.URL, &websocket.DialOptions{
		Subprotocols: stompSubprotocols,
		HTTPHeader:   d.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", d.URL, err)
	}
	ws.SetReadLimit(maxFrameBytes)

	// The net.Conn must outlive ctx, which only bounds the handshake.
	connCtx, cancel := context.WithCancel(context.Background())
	nc := websocket.NetConn(connCtx, ws, websocket.MessageText)

	hb := d.HeartBeat
	if hb <= 0 {
		hb = DefaultHeartBeat
	}
	opts := []func(*stomp.Conn) error{stomp.ConnOpt.HeartBeat(hb, hb)}
	if u, err := url.Parse(d.URL); err == nil && u.Hostname() != "" {
		opts = append(opts, stomp.ConnOpt.Host(u.Hostname()))
	}

	conn, err := stomp.Connect(nc, opts...)
	if err != nil {
		cancel()
		_ = nc.Close()
		return nil, fmt.Errorf("stomp connect: %w", err)
	}
	return &stompSession{conn: conn, cancel: cancel, done: make(chan struct{})}, nil
}

type stompSession struct {
	conn   *stomp.Conn
	cancel context.CancelFunc

	once sync.Once
	done chan struct{}
}

func (s *stompSession) Subscribe(destination string) (<-chan Frame, error) {
	sub, err := s.conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return nil, fmt.Errorf("stomp subscribe %s: %w", destination, err)
	}
	out := make(chan Frame)
	go func() {
		defer close(out)
		for msg := range sub.C {
			f := Frame{Err: msg.Err}
			if msg.Err == nil {
				f.Body = msg.Body
			}
			select {
			case out <- f:
			case <-s.done:
				return
			}
			if msg.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

func (s *stompSession) Send(destination string, body []byte) error {
	return s.conn.Send(destination, "application/json", body)
}

func (s *stompSession) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.conn.MustDisconnect()
		s.cancel()
	})
	return err
}
