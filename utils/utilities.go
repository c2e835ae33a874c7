// Package utils holds small helpers shared across packages that would
// otherwise each reinvent them.
package utils

import (
	"crypto/rand"
	"fmt"
)

// GenerateUniqueID returns a random hex identifier, used to name temporary
// files during backend rotation so concurrent rolls never collide.
func GenerateUniqueID() string {
	b := make([]byte, 20) // 20 bytes = 40 hex chars
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("utils: failed to generate id: %v", err))
	}
	return fmt.Sprintf("%x", b)
}
