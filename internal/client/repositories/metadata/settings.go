package metadata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eunio/dailysync/internal/common"
)

// GetString reads key as a string; an absent key yields "".
func GetString(ctx context.Context, repo Repository, key string) (string, error) {
	v, err := repo.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// SaveSession stores the owner the client syncs as and its access token.
// Run it inside a transaction to store both or neither.
func SaveSession(ctx context.Context, repo Repository, ownerID, accessToken string) error {
	ownerID = strings.TrimSpace(ownerID)
	accessToken = strings.TrimSpace(accessToken)
	if ownerID == "" || accessToken == "" {
		return fmt.Errorf("%w: owner id and access token are required", common.ErrValidation)
	}
	if err := repo.Set(ctx, KeyOwnerID, []byte(ownerID)); err != nil {
		return err
	}
	return repo.Set(ctx, KeyAccessToken, []byte(accessToken))
}

// LoadSession returns the stored owner and token; both are "" when nobody
// is signed in.
func LoadSession(ctx context.Context, repo Repository) (ownerID, accessToken string, err error) {
	if ownerID, err = GetString(ctx, repo, KeyOwnerID); err != nil {
		return "", "", err
	}
	if accessToken, err = AccessToken(ctx, repo); err != nil {
		return "", "", err
	}
	return ownerID, accessToken, nil
}

// ClearSession forgets the owner and token. Last sync times are kept.
func ClearSession(ctx context.Context, repo Repository) error {
	if err := repo.Delete(ctx, KeyOwnerID); err != nil {
		return err
	}
	return repo.Delete(ctx, KeyAccessToken)
}

// AccessToken returns the stored access token, or "".
func AccessToken(ctx context.Context, repo Repository) (string, error) {
	return GetString(ctx, repo, KeyAccessToken)
}

func lastSyncKey(ownerID string) string {
	return KeyLastSyncAt + ":" + ownerID
}

// SetLastSyncAt records when a sync pass for the owner finished.
func SetLastSyncAt(ctx context.Context, repo Repository, ownerID string, at time.Time) error {
	return repo.Set(ctx, lastSyncKey(ownerID), []byte(strconv.FormatInt(at.Unix(), 10)))
}

// LastSyncAt returns the zero time if the owner was never synced.
func LastSyncAt(ctx context.Context, repo Repository, ownerID string) (time.Time, error) {
	v, err := repo.Get(ctx, lastSyncKey(ownerID))
	if err != nil || v == nil {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad %s value %q", common.ErrDatabase, KeyLastSyncAt, v)
	}
	return time.Unix(sec, 0).UTC(), nil
}
