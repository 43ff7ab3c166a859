package crypto

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"

	"hearth/internal/domain"
)

const (
	// fingerprintVersion is hashed in so a future format change cannot
	// collide with the current one.
	fingerprintVersion = 0

	// fingerprintIterations slows brute-force search for a public key
	// whose fingerprint matches a target.
	fingerprintIterations = 5200

	fingerprintBytes     = 30
	fingerprintGroupSize = 5
)

// Fingerprint derives the displayable safety-number half for one
// (user, public key) pair: an iterated SHA-512 digest truncated to 30
// bytes and formatted as 12 space-separated groups of 5 hex digits.
// Stable for a given input pair.
func Fingerprint(user domain.UserID, key domain.X25519Public) domain.Fingerprint {
	seed := make([]byte, 0, 2+32+len(user))
	seed = append(seed, 0, fingerprintVersion)
	seed = append(seed, key[:]...)
	seed = append(seed, []byte(user)...)

	digest := sha512.Sum512(seed)
	for i := 1; i < fingerprintIterations; i++ {
		h := sha512.New()
		h.Write(digest[:])
		h.Write(key[:])
		h.Sum(digest[:0])
	}

	raw := strings.ToUpper(hex.EncodeToString(digest[:fingerprintBytes]))
	groups := make([]string, 0, len(raw)/fingerprintGroupSize)
	for i := 0; i < len(raw); i += fingerprintGroupSize {
		groups = append(groups, raw[i:i+fingerprintGroupSize])
	}
	return domain.Fingerprint(strings.Join(groups, " "))
}

// CombinedFingerprint joins the two halves into the local:remote string
// exchanged out of band (QR payload or read aloud).
func CombinedFingerprint(local, remote domain.Fingerprint) string {
	return local.String() + ":" + remote.String()
}
