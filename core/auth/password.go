package auth

import (
	"crypto/subtle"
	"encoding/base64"

	"coldwatch/core/utils"
	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// HashPassword returns the argon2id hash and the random salt, both
// base64-encoded. The pepper is a server-wide secret mixed into the key
// derivation.
func HashPassword(password, pepper string) (hash, salt string, err error) {
	salt, err = utils.RandString(16)
	if err != nil {
		return "", "", err
	}
	return hashWithSalt(password, pepper, salt), salt, nil
}

func VerifyPassword(password, pepper, salt, hash string) bool {
	computed := hashWithSalt(password, pepper, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

func hashWithSalt(password, pepper, salt string) string {
	key := argon2.IDKey([]byte(password+pepper), []byte(salt), argonTime, argonMemory, argonThreads, argonKeyLen)
	return base64.RawStdEncoding.EncodeToString(key)
}
