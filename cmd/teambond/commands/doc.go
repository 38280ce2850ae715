// Package commands defines the teambond CLI and wires dependencies for subcommands.
//
// Commands
//
//   - keys init       Create the local keypair if missing and print its fingerprint
//   - keys reset      Delete the local keypair
//   - keys sync       Publish the local public key if the server copy differs
//   - register        Prepare keys for a new account and print the recovery code
//   - login           Restore keys from the server backups
//   - backup          Re-upload the password backup
//   - recovery        Issue a new recovery code
//   - peer-key        Resolve and fingerprint a partner's public key
//   - history         Print the decrypted history with a partner
//   - send            Send one message to a partner
//   - chat            Interactive conversation over the realtime channel
//   - config init     Write the default config file
//
// # Implementation
//
// The root command loads the TOML config, applies flag overrides, builds the
// logger and the dependency graph before any subcommand runs, and closes the
// key store afterwards.
package commands
