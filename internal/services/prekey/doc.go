// Package prekey generates the local device's signed and one-time
// prekeys and assembles the public bundle published to a directory.
package prekey
