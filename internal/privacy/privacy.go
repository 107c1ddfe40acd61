// Package privacy holds the input hygiene and storage obfuscation helpers
// used by the voice session.
//
// Obscure/Reveal are reversible obfuscation with a fixed, public key. They
// keep the stored language preference out of plain sight and nothing more;
// do not treat them as encryption.
package privacy

import (
	"encoding/base64"
	"strings"

	"github.com/hammamikhairi/voicepay/internal/domain"
)

const obscureKey = "voicepay-secure-key"

// Sanitize strips angle brackets, trims surrounding whitespace and caps the
// result at domain.MaxTranscriptLen characters.
func Sanitize(input string) string {
	s := strings.NewReplacer("<", "", ">", "").Replace(input)
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > domain.MaxTranscriptLen {
		s = string(r[:domain.MaxTranscriptLen])
	}
	return s
}

// Obscure XORs data with the fixed key and base64-encodes the result.
// Characters that do not fit in a byte after mixing cannot be encoded; in
// that case data is returned unchanged.
func Obscure(data string) string {
	runes := []rune(data)
	buf := make([]byte, len(runes))
	for i, r := range runes {
		mixed := r ^ rune(obscureKey[i%len(obscureKey)])
		if mixed < 0 || mixed > 0xFF {
			return data
		}
		buf[i] = byte(mixed)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// Reveal reverses Obscure. Malformed input is returned unchanged.
func Reveal(encoded string) string {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return encoded
	}
	runes := make([]rune, len(buf))
	for i, b := range buf {
		runes[i] = rune(b ^ obscureKey[i%len(obscureKey)])
	}
	return string(runes)
}
