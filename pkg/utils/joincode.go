package utils

import "crypto/rand"

// Alphabet for join codes. Excludes 0/O and 1/I so codes survive being
// read aloud or scribbled on a whiteboard.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const JoinCodeLength = 9

// GenerateJoinCode returns a random 9-character course join code.
// Uniqueness is enforced by the database; callers retry on collision.
func GenerateJoinCode() (string, error) {
	buf := make([]byte, JoinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(buf), nil
}
