package bookings

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

const manageTokenBytes = 16

func newManageToken() (string, error) {
	b := make([]byte, manageTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func tokenMatches(stored, given string) bool {
	if stored == "" || given == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
