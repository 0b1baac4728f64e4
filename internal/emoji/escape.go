// Package emoji converts reaction tokens to and from a form that is safe to
// use as a storage key. Tokens may be plain unicode emoji or custom emoji URLs.
package emoji

import (
	"strings"

	"chat-realtime/internal/models"
)

// The escape character is encoded first so decoding is unambiguous.
var (
	encoder = strings.NewReplacer(
		"%", "%25",
		".", "%2E",
		"/", "%2F",
		"$", "%24",
		"#", "%23",
		"[", "%5B",
		"]", "%5D",
	)
	decoder = strings.NewReplacer(
		"%25", "%",
		"%2E", ".",
		"%2F", "/",
		"%24", "$",
		"%23", "#",
		"%5B", "[",
		"%5D", "]",
	)
)

// EncodeKey returns the storage-key form of token.
func EncodeKey(token string) string {
	return encoder.Replace(token)
}

// DecodeKey reverses EncodeKey.
func DecodeKey(key string) string {
	return decoder.Replace(key)
}

// EncodeMap rekeys m with EncodeKey.
func EncodeMap(m models.ReactionMap) models.ReactionMap {
	out := make(models.ReactionMap, len(m))
	for token, entry := range m {
		out[EncodeKey(token)] = entry
	}
	return out
}

// DecodeMap rekeys m with DecodeKey.
func DecodeMap(m models.ReactionMap) models.ReactionMap {
	out := make(models.ReactionMap, len(m))
	for key, entry := range m {
		out[DecodeKey(key)] = entry
	}
	return out
}
