// Package idgen generates canonical-id slugs and event identifiers.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EncodeBase36 converts a byte slice to a base36 string of the given
// length, padding with leading zeros or truncating to the least
// significant digits as needed.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	var result strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// NewEventID derives a stable, content-addressed event identifier from the
// owning entity's id, the event message, and the timestamp it was
// appended at. A seq disambiguator covers the case of two events with
// identical content appended within the same timestamp resolution.
func NewEventID(entityID, message string, at time.Time, seq int) string {
	content := fmt.Sprintf("%s|%s|%d|%d", entityID, message, at.UnixNano(), seq)
	sum := sha256.Sum256([]byte(content))
	return "ev-" + EncodeBase36(sum[:6], 10)
}
