// Package assert holds invariant checks that panic on violation.
package assert

import (
	"encoding/hex"
	"fmt"
)

// Length panics if value is not exactly expected bytes long
func Length(value string, expected int) {
	if len(value) != expected {
		panic(fmt.Sprintf("assert.Length expected %d actual %d", expected, len(value)))
	}
}

// Hex panics unless value is a hex string encoding exactly n bytes
func Hex(value string, n int) {
	Length(value, n*2)
	if _, err := hex.DecodeString(value); err != nil {
		panic(fmt.Sprintf("assert.Hex: %v", err))
	}
}
