// Package timeline holds the in-memory message list of one conversation.
//
// Appends are deduplicated: a message is dropped when an existing entry has
// the same sender, the same decrypted content and a timestamp less than the
// dedup window (one second by default) away. This absorbs the server echo of
// our own optimistic sends and at-least-once redelivery. It is a heuristic;
// two identical messages typed within the window collapse into one.
package timeline
