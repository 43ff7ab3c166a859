// Package fanout maps one logical message for a multi-party
// conversation onto N pairwise-encrypted envelopes, one per
// participant device.
package fanout
