// Package metadata stores small client-side settings next to the records:
// the signed-in owner, the access token used by the remote store and the
// time of each owner's last completed sync.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeyAccessToken = "access_token"
	KeyLastSyncAt  = "last_sync_at"
	KeyOwnerID     = "owner_id"
)

// Repository is a byte-valued key/value table. Get returns (nil, nil) for
// an absent key and Delete of an absent key is not an error.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
