// Package fingerprint produces the opaque device identifier bound into
// authenticate and refresh requests. The server only ever compares the
// string for equality, so any stable per-device value works.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"runtime"
)

// Supplier returns the fingerprint for the current device. An empty string
// means "no fingerprint", which the transport omits from requests.
type Supplier func() string

// Default hashes stable host attributes. It is deterministic per machine and
// never changes within a session.
func Default() Supplier {
	hostname, _ := os.Hostname()

	h := sha256.New()
	h.Write([]byte(hostname))
	h.Write([]byte(runtime.GOOS))
	h.Write([]byte(runtime.GOARCH))
	fp := hex.EncodeToString(h.Sum(nil))

	return func() string { return fp }
}

// None disables fingerprinting.
func None() Supplier {
	return func() string { return "" }
}

// Static returns a fixed fingerprint, mainly for tests and for consumers
// that compute their own identifier elsewhere.
func Static(value string) Supplier {
	return func() string { return value }
}
