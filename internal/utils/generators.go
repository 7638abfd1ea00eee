package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// trackAlphabet skips 0/O and 1/I so codes survive being read aloud.
const trackAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	TrackCodeLength = 8
	linkTokenBytes  = 32
)

func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateTrackCode returns a short, human-shareable order code.
func GenerateTrackCode() (string, error) {
	max := big.NewInt(int64(len(trackAlphabet)))
	code := make([]byte, TrackCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate track code: %w", err)
		}
		code[i] = trackAlphabet[n.Int64()]
	}
	return string(code), nil
}

// GenerateLinkToken returns a URL-safe token carrying 256 bits of entropy.
func GenerateLinkToken() (string, error) {
	buf := make([]byte, linkTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate link token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
