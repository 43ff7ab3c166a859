// Package domain defines the core data models, interfaces, and error
// taxonomy shared across the messaging core. It contains plain types
// (wire/state) and contracts (interfaces) only.
package domain
