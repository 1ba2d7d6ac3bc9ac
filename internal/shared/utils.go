// Package shared provides small string helpers used by the HTTP and logo layers.
package shared

import (
	"net/url"
	"strings"
)

var uriUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent escapes s the way browsers' encodeURIComponent does:
// everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ) is percent-encoded.
//
// Example:
//
//	EncodeURIComponent("my file (1).pdf") // "my%20file%20(1).pdf"
func EncodeURIComponent(s string) string {
	return uriUnescaper.Replace(url.QueryEscape(s))
}
