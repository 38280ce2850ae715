package transport

import "context"

// Frame is one inbound message body, or the error that ended the stream.
type Frame struct {
	Body []byte
	Err  error
}

// Session is a connected realtime session.
type Session interface {
	// Subscribe starts delivery for destination. The channel is closed when
	// the session ends.
	Subscribe(destination string) (<-chan Frame, error)
	Send(destination string, body []byte) error
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}
