// Package chat orchestrates one two-party conversation: partner key
// resolution, history, the realtime transport and the send path.
package chat
