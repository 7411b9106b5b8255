package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

func GenerateTicketID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("tkt_%d_%06d", timestamp, randomNum.Int64())
}

// GenerateCredential mints the opaque string embedded in a ticket's QR code.
// Uniqueness per ticket is all the scanning side ever assumes about it.
func GenerateCredential() string {
	return uuid.New().String()
}
