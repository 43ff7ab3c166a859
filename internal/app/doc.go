// Package app wires application dependencies for the CLI.
//
// It loads Config (TOML file plus flag overrides), sets up logging, and
// builds the concrete stores, directory client and high-level services
// from Config, exposing them via the App struct for commands to use.
package app
