// Package hybrid implements the chat message cipher.
//
// Each message gets a fresh AES-256-GCM key and 12-byte IV. The AES key is
// wrapped with RSA-OAEP/SHA-256 for the receiver and, optionally, for the
// sender so the author can read their own history. Decryption tries the
// receiver wrap first and then the sender wrap.
//
// Every failure while decrypting (bad encoding, no wrap that opens, tag
// mismatch) is reported as domain.ErrDecryption so callers can render a
// placeholder without inspecting causes.
package hybrid
