// Package relay provides an HTTP implementation of the domain.RelayClient
// interface used by teambond.
//
// The server is an untrusted store for public keys, encrypted private-key
// backups and encrypted chat history. This package offers a concrete HTTP
// client for those endpoints.
//
// Supported operations include:
//   - Fetching a user's public key (plain-text base64 SPKI, cache-busted).
//   - Publishing our public key.
//   - Uploading password and recovery-code backups of the private key.
//   - Fetching the backups a login response carries.
//   - Fetching the encrypted history of a conversation.
//
// All requests accept a context for cancellation and deadlines. Transport
// failures and 5xx statuses match domain.ErrNetwork; every non-2xx status is
// returned as a *StatusError carrying the method, path and code.
package relay
