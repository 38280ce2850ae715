// Package peerkey resolves a conversation partner's public key.
//
// Resolution walks an ordered list of sources and stops at the first one
// that yields a usable key:
//
//  1. network, when a refresh is forced or nothing is cached; a successful
//     fetch overwrites the cache
//  2. the local cache (publicKey:{username} in the key store)
//
// When every source fails the caller gets domain.ErrPeerKeyUnresolved. A
// network fetch always wins over the cache, which is never authoritative.
package peerkey
