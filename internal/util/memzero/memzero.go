// Package memzero clears sensitive byte slices.
package memzero

// Zero overwrites b with zeroes.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
