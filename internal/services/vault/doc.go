// Package vault backs up the private key to the server under a password and
// restores it on another device.
//
// The wrapping key is PBKDF2-HMAC-SHA-256 (100 000 iterations) over the
// password, salted with the username, used for AES-256-GCM with a fresh
// 12-byte IV per backup. The server only ever receives ciphertext and IV.
// The same sealing is reused by the recovery package under a recovery code.
package vault
