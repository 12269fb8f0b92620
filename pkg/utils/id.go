package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateBatchID generates a batch ID with a timestamp prefix
func GenerateBatchID() string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("batch-%s-%s", timestamp, suffix)
}

// GenerateID generates a random unique ID
func GenerateID() string {
	return uuid.NewString()
}
