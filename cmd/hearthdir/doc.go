// Package main runs the in-memory HTTP directory used by hearth during
// development and tests. It stores published prekey bundles, hands out
// one one-time prekey per bundle fetch, and queues encrypted envelopes
// for recipients until they ack them.
//
// HTTP API
//
//	POST /v1/bundles
//	    Store a device's SignedPrekeyBundle.
//
//	GET /v1/bundles/{user}/{device}
//	    Return the device's bundle with at most one one-time prekey,
//	    which is consumed by the fetch.
//
//	POST /v1/messages/{user}/{device}
//	    Enqueue a MessageEnvelope for the device. A zero SentAt is
//	    stamped with the current time.
//
//	GET /v1/messages/{user}/{device}?limit=N
//	    Return up to N queued envelopes without removing them.
//
//	POST /v1/messages/{user}/{device}/ack { "count": N }
//	    Drop the first N queued envelopes.
//
// All state is held in memory and lost on process exit. The directory
// never sees plaintext or private keys; it stores ciphertext and public
// bundles only.
package main
