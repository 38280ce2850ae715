// Package transport carries chat messages over STOMP on a WebSocket.
//
// A Client serves one conversation at a time and moves through
//
//	Disconnected -> Connecting -> Connected
//
// falling back to Disconnected on any error, then retrying after a fixed
// delay (five seconds by default, no backoff). Incoming frames are handled
// one at a time: decode, re-read the private key, decrypt (or substitute a
// placeholder), then append to the timeline with deduplication.
//
// Disconnect invalidates the client's liveness token before tearing the
// connection down, so no callback that was already in flight can touch the
// timeline afterwards.
//
// The wire session sits behind the Dialer and Session interfaces; StompDialer
// is the production implementation built on go-stomp and coder/websocket.
package transport
