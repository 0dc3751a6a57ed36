package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eunio/dailysync/internal/client/repositories/metadata"
	"github.com/eunio/dailysync/internal/common"
	"github.com/eunio/dailysync/internal/dbx"
)

// Session is the identity the client syncs as.
type Session struct {
	OwnerID     string
	AccessToken string
}

// SessionService persists the current session in local metadata.
//
// Contract:
//   - Login: store owner id and access token atomically.
//   - Current: return the stored session, common.ErrAuthentication if none.
//   - Logout: forget the session; records and sync state are kept.
type SessionService interface {
	Login(ctx context.Context, ownerID, accessToken string) error
	Current(ctx context.Context) (Session, error)
	Logout(ctx context.Context) error
}

type sessionService struct {
	db *sql.DB
}

func NewSessionService(db *sql.DB) SessionService {
	return &sessionService{db: db}
}

func (s *sessionService) Login(ctx context.Context, ownerID, accessToken string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.SaveSession(ctx, metadata.NewSQLiteRepository(tx), ownerID, accessToken)
	})
}

func (s *sessionService) Current(ctx context.Context) (Session, error) {
	owner, token, err := metadata.LoadSession(ctx, metadata.NewSQLiteRepository(s.db))
	if err != nil {
		return Session{}, err
	}
	if owner == "" {
		return Session{}, fmt.Errorf("%w: not logged in", common.ErrAuthentication)
	}
	return Session{OwnerID: owner, AccessToken: token}, nil
}

func (s *sessionService) Logout(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.ClearSession(ctx, metadata.NewSQLiteRepository(tx))
	})
}
