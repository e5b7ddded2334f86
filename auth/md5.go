// Package auth computes the credential responses for the password-based
// authentication methods of the legacy startup protocol.
package auth

import (
	"crypto/md5"
	"encoding/hex"
)

// MD5Response computes the two-round md5 digest for md5-password
// authentication: md5(md5(password + user) + salt), each round hex-encoded,
// with the final digest prefixed by "md5". The salt is the 4 bytes carried
// by the authentication request.
func MD5Response(user, password string, salt []byte) []byte {
	inner := md5.Sum(append([]byte(password), user...))
	hexed := make([]byte, hex.EncodedLen(len(inner)))
	hex.Encode(hexed, inner[:])

	outer := md5.Sum(append(hexed, salt...))
	out := make([]byte, 3+hex.EncodedLen(len(outer)))
	copy(out, "md5")
	hex.Encode(out[3:], outer[:])
	return out
}
