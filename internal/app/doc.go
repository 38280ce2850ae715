// Package app wires application dependencies for the CLI.
//
// It loads Config from TOML, builds the zerolog logger, and constructs the
// key store, REST client, key custody services and the chat session from
// it, exposing them via the Wire struct for commands to use.
package app
