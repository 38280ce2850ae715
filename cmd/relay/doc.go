// Package main runs the development relay for the teambond REST API. It
// stores published public keys, encrypted key backups and chat history.
//
// HTTP API
//
//	GET  /api/users/public_key/{username}
//	    Return the base64 SPKI public key for {username} as plain text.
//
//	POST /api/users/update_public_key { username, publicKey }
//	POST /api/users/update_private_key { username, encryptedPrivateKey, privateKeyIv }
//	POST /api/users/update_recovery_key { username, encryptedRecoveryPrivateKey, recoveryKeyIv }
//	    Store or replace the named fields for {username}.
//
//	GET  /api/users/backups/{username}
//	    Return every stored key field for {username}; missing fields are omitted.
//
//	GET  /api/v1/personal_chat/all_messages/{a}/{b}
//	    Return the history of the chat between user ids {a} and {b}, oldest first.
//
//	POST /api/v1/personal_chat/send_message/{a}/{b} { sender, content, timestamp }
//	    Append a message. A missing timestamp is filled with the current time.
//
// Behaviour
//
//   - Storage is memory (lost on exit), Redis or PostgreSQL, chosen with --storage.
//   - Realtime STOMP delivery is not provided; clients fall back to history.
//   - Every request is access-logged with method, path, status, size and duration.
//   - The default listen address is :8080.
//
// The relay never sees plaintext or private keys; it only stores ciphertext
// and public keys.
package main
