package keyvalue

import (
	"context"
)

// Repository is the durable home of entry lists. Get returns
// common.ErrorNotFound for an unknown key. Put replaces whatever is stored
// under key; concurrent writers race and the last one wins.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, entries []byte) error
}
