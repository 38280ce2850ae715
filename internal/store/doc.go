// Package store provides file-based persistence for TeamBond's local state.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON on disk with atomic temp-file replacement. All
// methods are concurrency-safe via internal locking. Stored files live under
// the user's configured home directory.
//
// The package includes:
//   - FileKeyStore: origin-scoped key material (privateKey, publicKey and
//     publicKey:{partner} cache slots) with an explicit Open/Close lifecycle
//   - ProfileFileStore: the signed-in account per server origin
package store
