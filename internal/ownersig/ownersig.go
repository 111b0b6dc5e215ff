// Package ownersig mints and verifies owner capability tokens.
//
// A token is the hex-encoded HMAC-SHA256 of the decimal owner id under a
// server-held secret. It proves the holder may act as that owner (delete
// own reports, open the personal map view) without a session or login
// system. It is a capability, not a password: leaking the token/owner-id
// pair grants delete rights on that owner's data only.
package ownersig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Sign returns the capability token for the given owner id.
func Sign(secret []byte, ownerID int64) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ownerID, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the valid token for the owner id.
// Comparison is constant time.
func Verify(secret []byte, ownerID int64, sig string) bool {
	if len(secret) == 0 || sig == "" {
		return false
	}
	want := Sign(secret, ownerID)
	return hmac.Equal([]byte(want), []byte(sig))
}
