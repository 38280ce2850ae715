package types

import "crypto/rsa"

// KeyPair is the local RSA-OAEP keypair. The public half is always derived
// from the private half when loaded from storage.
type KeyPair struct {
	Public  *rsa.PublicKey
	Private *rsa.PrivateKey
}

// PublicKeyUpdate publishes a user's public key (base64 SPKI) to the server.
type PublicKeyUpdate struct {
	Username  Username `json:"username"`
	PublicKey string   `json:"publicKey"`
}

// PartnerKeyCacheEntry is a cached copy of another user's public key.
type PartnerKeyCacheEntry struct {
	Username        Username
	PublicKeyBase64 string
}
