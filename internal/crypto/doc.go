// Package crypto exposes the minimal primitives used by TeamBond.
//
// Contents
//
//   - RSA-OAEP (2048-bit, SHA-256) key generation, PKCS#8/SPKI codecs and
//     key wrapping (GenerateRSA, MarshalPrivateKey, ParsePublicKey, WrapKey,
//     UnwrapKey)
//   - AES-256-GCM sealing with 12-byte IVs (SealGCM, OpenGCM)
//   - PBKDF2-HMAC-SHA-256 key derivation (DeriveKey)
//   - Base64 helpers tolerant of PEM armour and whitespace (B64, DecodeB64)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Every parameter here is fixed for interoperability with the browser
// client, which uses WebCrypto with the same algorithms. Callers should treat
// returned secrets as sensitive and wipe them with memzero when practical.
package crypto
