package password

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// DefaultTemporaryLength is the length of generated first-login passwords.
const DefaultTemporaryLength = 12

const (
	upperChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowerChars  = "abcdefghijkmnopqrstuvwxyz"
	digitChars  = "23456789"
	symbolChars = "!@#$%^&*-_+="
	allChars    = upperChars + lowerChars + digitChars + symbolChars
)

// GenerateTemporary returns a random password of the given length holding
// at least one upper, lower, digit and symbol character.
func GenerateTemporary(length int) (string, error) {
	if length < 8 {
		return "", errors.New("temporary password length must be >= 8")
	}

	out := make([]byte, length)
	for i, class := range []string{upperChars, lowerChars, digitChars, symbolChars} {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		out[i] = c
	}
	for i := 4; i < length; i++ {
		c, err := pick(allChars)
		if err != nil {
			return "", err
		}
		out[i] = c
	}

	// Fisher-Yates so the guaranteed classes are not always first.
	for i := length - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		k := j.Int64()
		out[i], out[k] = out[k], out[i]
	}
	return string(out), nil
}

func pick(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[n.Int64()], nil
}
