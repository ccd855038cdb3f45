// Package roomid generates and validates human-readable room identifiers in
// the form abc-defg-jkl.
package roomid

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

var pattern = regexp.MustCompile(`^[a-z]{3}-[a-z]{4}-[a-z]{3}$`)

const charset = "abcdefghijklmnopqrstuvwxyz"

// Generate returns a fresh room id. Collisions are tolerable: joining an
// existing room is a valid operation, so a duplicate id just lands the
// caller in someone else's room.
func Generate() (string, error) {
	segments := make([]string, 0, 3)
	for _, length := range []int{3, 4, 3} {
		seg, err := segment(length)
		if err != nil {
			return "", err
		}
		segments = append(segments, seg)
	}
	return strings.Join(segments, "-"), nil
}

func segment(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}

// Valid reports whether id matches the room id format. The HTTP layer
// rejects malformed ids before they reach the room core.
func Valid(id string) bool {
	return pattern.MatchString(id)
}
