package flatmsg

import (
	"fmt"
	"strings"
)

func Ptr[T any](v T) *T { return &v } // Ptr is a helper to take the address of a literal, making test setup cleaner.

// rtrim drops trailing spaces and NULs, the two padding bytes seen in batch files.
func rtrim(s string) string { return strings.TrimRight(s, " \x00") }

func fill(b []byte, c byte) []byte {
	for i := range b {
		b[i] = c
	}
	return b
}

// checkTrailingBlank verifies that the bytes following a record are only padding.
func checkTrailingBlank(data []byte) error {
	for i, b := range data {
		if b != ' ' && b != 0 {
			return &Error{Kind: ErrTrailingData, Detail: fmt.Sprintf("found byte 0x%02x at offset %d", b, i)}
		}
	}
	return nil
}
