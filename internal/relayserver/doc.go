// Package relayserver is a development server for the REST surface the chat
// client talks to: public keys, password and recovery backups, and message
// history. It does not broker STOMP; messages can be injected over REST.
//
// Storage is pluggable. MemoryStorage keeps everything in process,
// RedisStorage uses hashes and lists, and PostgresStorage uses two tables.
package relayserver
