package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/veloshop/veloshop_auth/internal/apperr"
)

// Purpose scopes a one-time code to a single flow. A code issued for one
// purpose never verifies for another.
type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verify-email"
	PurposeResetPassword Purpose = "reset-password"
)

// Verification failures. Missing and expired records read the same to an
// outside caller by message, but stay distinct for tests and logging.
var (
	ErrNotFound = apperr.E(apperr.KindValidation, "otp expired or invalid")
	ErrExpired  = apperr.E(apperr.KindValidation, "otp has expired")
	ErrMismatch = apperr.E(apperr.KindValidation, "invalid otp")
)

const codeDigits = 6

// generateCode produces a cryptographically random 6-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// hashCode stores only a digest of the code so a leaked record does not
// reveal the code directly.
func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
