// internal/lobby/codes.go
package lobby

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	RoomCodeLength = 5
	// RoomCodeChars leaves out I, O, 0 and 1.
	RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxCodeAttempts = 100
)

// GenerateRoomCode creates a random room code.
func GenerateRoomCode() (string, error) {
	code := make([]byte, RoomCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(RoomCodeChars))))
		if err != nil {
			return "", fmt.Errorf("generating room code: %w", err)
		}
		code[i] = RoomCodeChars[n.Int64()]
	}
	return string(code), nil
}

// uniqueCodeUnsafe returns a code not used by any live room. Assumes lock is held.
func (r *Registry) uniqueCodeUnsafe() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := GenerateRoomCode()
		if err != nil {
			return "", err
		}
		if _, taken := r.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free room code after %d attempts", maxCodeAttempts)
}
