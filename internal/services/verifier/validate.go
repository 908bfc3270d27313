package verifier

import (
	"fmt"
	"strings"
)

// NormalizeTxHash lowercases the hash, strips an optional 0x prefix and
// rejects anything that is not 64 hex characters. Well-known placeholder
// hashes are rejected here too, before any network call is made.
func NormalizeTxHash(raw string) (string, error) {
	hash := strings.ToLower(strings.TrimSpace(raw))
	hash = strings.TrimPrefix(hash, "0x")

	if len(hash) != 64 {
		return "", fmt.Errorf("%w: want 64 hex chars, got %d", ErrInvalidTxHash, len(hash))
	}

	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: non-hex character %q", ErrInvalidTxHash, c)
		}
	}

	if isPlaceholderHash(hash) {
		return "", fmt.Errorf("%w: placeholder hash", ErrInvalidTxHash)
	}

	return hash, nil
}

// isPlaceholderHash catches values that cannot be real transactions: a
// single repeated nibble (covers the all-zero hash) and the classic
// dead/beef filler.
func isPlaceholderHash(hash string) bool {
	repeated := true
	for i := 1; i < len(hash); i++ {
		if hash[i] != hash[0] {
			repeated = false
			break
		}
	}
	if repeated {
		return true
	}

	if strings.HasPrefix(hash, "dead") && strings.HasSuffix(hash, "beef") {
		return true
	}

	return false
}
