package decode

import (
	"strings"

	"github.com/rotisserie/eris"
)

// VINLength is the length of every post-1981 VIN.
const VINLength = 17

// ErrInvalidVIN is returned for VINs that cannot be sent to a provider.
var ErrInvalidVIN = eris.New("decode: invalid vin")

// NormalizeVIN upper-cases and trims a VIN as typed by a dealer.
func NormalizeVIN(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidateVIN checks length and alphabet. I, O and Q never appear in a VIN.
// The check digit is not enforced; see CheckDigit.
func ValidateVIN(vin string) error {
	if len(vin) != VINLength {
		return eris.Wrapf(ErrInvalidVIN, "length %d, want %d", len(vin), VINLength)
	}
	for i := 0; i < len(vin); i++ {
		if _, ok := transliteration[vin[i]]; !ok {
			return eris.Wrapf(ErrInvalidVIN, "character %q at position %d", vin[i], i+1)
		}
	}
	return nil
}

var transliteration = func() map[byte]int {
	m := map[byte]int{
		'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8,
		'J': 1, 'K': 2, 'L': 3, 'M': 4, 'N': 5, 'P': 7, 'R': 9,
		'S': 2, 'T': 3, 'U': 4, 'V': 5, 'W': 6, 'X': 7, 'Y': 8, 'Z': 9,
	}
	for c := byte('0'); c <= '9'; c++ {
		m[c] = int(c - '0')
	}
	return m
}()

var checkWeights = [VINLength]int{8, 7, 6, 5, 4, 3, 2, 10, 0, 9, 8, 7, 6, 5, 4, 3, 2}

// CheckDigit computes the position-9 check character of a valid VIN and
// reports whether the VIN carries it. Many non-North-American VINs fail
// this, so callers treat a mismatch as a warning.
func CheckDigit(vin string) (want byte, ok bool) {
	if ValidateVIN(vin) != nil {
		return 0, false
	}
	sum := 0
	for i := 0; i < VINLength; i++ {
		sum += transliteration[vin[i]] * checkWeights[i]
	}
	r := sum % 11
	want = byte('0' + r)
	if r == 10 {
		want = 'X'
	}
	return want, vin[8] == want
}
