// Package memzero wipes secret buffers once they are no longer needed.
package memzero

import "runtime"

// Zero clears every byte of each buffer. Nil buffers are ignored.
func Zero(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
		// Keep b reachable so the clear is not treated as a dead store.
		runtime.KeepAlive(b)
	}
}
