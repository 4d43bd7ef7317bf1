// Package cryptox holds the key derivation used for login and the
// checksums used to identify audio assets.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/dmitrijs2005/habitsync/internal/common"
	"golang.org/x/crypto/argon2"
)

// SaltSize is the length of a freshly generated account salt.
const SaltSize = 16

// DeriveMasterKey stretches password with argon2id. The parameters are
// part of the stored verifier format; changing them invalidates every
// registered account.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// MakeVerifier returns the value the server stores instead of the key.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// VerifierMatches compares two verifiers in constant time.
func VerifierMatches(stored, candidate []byte) bool {
	return subtle.ConstantTimeCompare(stored, candidate) == 1
}

// NewSalt returns SaltSize random bytes.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// Checksum returns the hex encoded sha256 of data. Asset blobs are keyed
// by it on the server, and clients use it to detect a changed attachment.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
