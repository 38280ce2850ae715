// Package keys manages the local RSA-OAEP keypair.
//
// It creates the keypair on first use, re-derives the public half from the
// private half on every load, regenerates a keypair whose stored private key
// can no longer be read, and keeps the server's copy of the public key in
// sync. All key material lives in the injected domain.KeyStore.
package keys
