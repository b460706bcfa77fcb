package cache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Hash returns the 16-character hex xxhash64 of data.
func Hash(data []byte) string {
	return hex64(xxhash.Sum64(data))
}

func hex64(v uint64) string { return fmt.Sprintf("%016x", v) }

// Keyer maps cached objects to backend keys.
type Keyer interface {
	// ContentKey returns the key for a file at path in repo.
	ContentKey(repo, path string) string
}

// DefaultKeyer produces bounded, filesystem-safe keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ContentKey hashes repo and path with a separator that cannot occur in either,
// so ("a", "b/c") and ("a/b", "c") never collide.
func (DefaultKeyer) ContentKey(repo, path string) string {
	d := xxhash.New()
	_, _ = d.WriteString(repo)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(path)
	return "content:" + hex64(d.Sum64())
}

// ScopedKeyer wraps a Keyer with a prefix so several organizations can share
// one backend without colliding.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "org:acme:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ContentKey generates a prefixed content key.
func (k *ScopedKeyer) ContentKey(repo, path string) string {
	return k.prefix + k.inner.ContentKey(repo, path)
}
