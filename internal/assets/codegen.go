package assets

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const (
	suffixLength = 4
	// suffixAlphabet omits 0/O and 1/I so printed codes read unambiguously.
	suffixAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var prefixRe = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// SuffixSource draws one random code suffix.
type SuffixSource func() (string, error)

// CryptoSuffix draws suffixes from crypto/rand.
func CryptoSuffix() (string, error) {
	max := big.NewInt(int64(len(suffixAlphabet)))
	var b strings.Builder
	b.Grow(suffixLength)
	for i := 0; i < suffixLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("draw suffix: %w", err)
		}
		b.WriteByte(suffixAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizePrefix upper-cases and validates an operator prefix.
func NormalizePrefix(prefix string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(prefix))
	if !prefixRe.MatchString(normalized) {
		return "", fmt.Errorf("prefix %q must be 1-10 letters or digits", prefix)
	}
	return normalized, nil
}

// FormatCode joins a prefix and suffix into PREFIX-XXXX.
func FormatCode(prefix, suffix string) string {
	return prefix + "-" + suffix
}

// generateCodes draws until count new codes exist or the attempt budget runs
// out. taken holds codes already issued under the prefix; it is not modified.
func generateCodes(prefix string, count, budget int, taken map[string]struct{}, draw SuffixSource) ([]string, int, error) {
	codes := make([]string, 0, count)
	fresh := make(map[string]struct{}, count)
	attempts := 0
	for len(codes) < count && attempts < budget {
		attempts++
		suffix, err := draw()
		if err != nil {
			return nil, attempts, err
		}
		code := FormatCode(prefix, suffix)
		if _, exists := taken[code]; exists {
			continue
		}
		if _, exists := fresh[code]; exists {
			continue
		}
		fresh[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, attempts, nil
}
