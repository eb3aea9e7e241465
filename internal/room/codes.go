package room

import (
	"github.com/jaevor/go-nanoid"
	"golang.org/x/crypto/bcrypt"

	"github.com/DoyleJ11/otrio-backend/internal/apperr"
)

// joinCodeAlphabet avoids visually ambiguous characters (0/O, 1/I/L) so
// a human reading it aloud doesn't misdial a private-room code.
const joinCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// GenerateJoinCode mints a 6-character human-typeable private-room
// code using nanoid.CustomASCII over joinCodeAlphabet.
func GenerateJoinCode() (string, error) {
	gen, err := nanoid.CustomASCII(joinCodeAlphabet, 6)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to build code generator", err)
	}
	for attempt := 0; attempt < 5; attempt++ {
		code := gen()
		if len(code) == 6 {
			return code, nil
		}
	}
	return "", apperr.New(apperr.Internal, "failed to generate a join code")
}

// HashCode hashes a plaintext private-room code for storage; the
// plaintext itself is only ever returned to the host once, in the
// room-created event.
func HashCode(plaintext string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to hash room code", err)
	}
	return hash, nil
}

// CompareCode reports whether plaintext matches hash, case-sensitive.
// bcrypt's own comparison is constant-time with respect to the digest.
func CompareCode(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}
