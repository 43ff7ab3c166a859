// Package message implements the message cipher: plaintext payloads in,
// authenticated envelopes out, and back. It creates sessions lazily
// through the prekey bundle provider and enforces the trust model's
// blocked state in both directions.
package message
