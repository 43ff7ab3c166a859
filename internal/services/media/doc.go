// Package media implements the attachment cipher. Content is encrypted
// once with a random per-file key using a ChaCha20 stream (so files
// larger than memory are supported) and integrity-checked with a
// SHA-256 hash over the ciphertext; the content key is wrapped once per
// recipient through that recipient's messaging session.
package media
