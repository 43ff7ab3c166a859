// Package x3dh derives the initial shared root key for a session from
// a signed prekey bundle (initiator side) or the prekey message carried
// in the first envelope (responder side).
package x3dh
