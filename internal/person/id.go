package person

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

var idPattern = regexp.MustCompile(`^[a-z]{3}-\d{3}-[a-z]{3}-\d{3}$`)

const (
	letters = "abcdefghijklmnopqrstuvwxyz"
	digits  = "0123456789"
)

func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// NewID returns a fresh identifier of the form abc-123-def-456.
func NewID() (string, error) {
	buf := make([]byte, 0, 15)
	for group := 0; group < 4; group++ {
		if group > 0 {
			buf = append(buf, '-')
		}
		alphabet := letters
		if group%2 == 1 {
			alphabet = digits
		}
		for i := 0; i < 3; i++ {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
			if err != nil {
				return "", err
			}
			buf = append(buf, alphabet[n.Int64()])
		}
	}
	return string(buf), nil
}
