// Package passgen generates random passwords from crypto/rand.
package passgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	DefaultLength = 16
	MinLength     = 4
	MaxLength     = 128

	Upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Lower   = "abcdefghijklmnopqrstuvwxyz"
	Digits  = "0123456789"
	Symbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

var all = Upper + Lower + Digits + Symbols

// randReader is the entropy source; swapped in tests.
var randReader io.Reader = rand.Reader

// ClampLength maps any requested length into [MinLength, MaxLength].
func ClampLength(n int) int {
	switch {
	case n < MinLength:
		return MinLength
	case n > MaxLength:
		return MaxLength
	default:
		return n
	}
}

// Generate returns a password of ClampLength(length) characters containing at
// least one upper-case letter, lower-case letter, digit and symbol.
func Generate(length int) (string, error) {
	length = ClampLength(length)

	out := make([]byte, 0, length)
	for _, set := range []string{Upper, Lower, Digits, Symbols} {
		c, err := pick(set)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates
	for i := len(out) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func pick(set string) (byte, error) {
	i, err := randInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(randReader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random source: %w", err)
	}
	return int(v.Int64()), nil
}
