package lockmgr

import (
	"crypto/rand"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("lockmgr")

const (
	// ownerIDLength is the length of an owner id in bytes (256 bit)
	ownerIDLength = 32
)

// generateOwnerID creates a new unique owner ID
// The owner ID is a random byte slice of length ownerIDLength.
func generateOwnerID() ([]byte, error) {
	randomBytes := make([]byte, ownerIDLength)
	_, err := rand.Read(randomBytes)
	return randomBytes, err
}
