// Package storage provides the per-origin key/value area the tip ledger persists into.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("storage: key not found")

// Store is a key/value area scoped to one origin. Values are opaque bytes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores backed by a remote service or a directory
// that can disappear.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Namespace turns an origin such as "http://localhost:3000" into a token safe
// for file names and key prefixes.
func Namespace(origin string) string {
	origin = strings.TrimSpace(strings.ToLower(origin))
	if origin == "" {
		return "default"
	}
	var b strings.Builder
	b.Grow(len(origin))
	for _, r := range origin {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
