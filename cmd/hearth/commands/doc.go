// Package commands defines the hearth CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - init         Create the local identity
//   - fingerprint  Print local or combined safety-number fingerprints
//   - register     Publish a prekey bundle to the directory
//   - session      Establish a session with a peer device
//   - send         Encrypt and send a message
//   - recv         Fetch and decrypt queued messages
//   - verify       Compare fingerprints and mark a peer verified
//   - trust        Inspect and resolve a peer's trust state
//   - attach       Encrypt or decrypt a file attachment
//
// # Implementation
//
// The root command loads hearth.toml from the home directory, applies
// flag overrides, and builds the dependency graph (LevelDB stores,
// services, directory client) before any subcommand runs, so handlers
// share one app context.
package commands
