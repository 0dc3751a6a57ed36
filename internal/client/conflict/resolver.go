// Package conflict decides which of two copies of a record survives.
//
// The policy is last-write-wins on UpdatedAt. Ties keep the local copy, so
// an unchanged record never causes a write in either direction.
package conflict

import (
	"context"
	"errors"

	"github.com/eunio/dailysync/internal/client/models"
	"github.com/eunio/dailysync/internal/logging"
)

// Source names the side a winner came from.
type Source string

const (
	SourceLocal  Source = "LOCAL"
	SourceRemote Source = "REMOTE"
)

// Reasons attached to a Decision.
const (
	ReasonNoRemote     = "no remote copy exists"
	ReasonNoLocal      = "no local copy exists"
	ReasonRemoteNewer  = "remote is strictly newer"
	ReasonLocalNewerEq = "local is newer or equal (ties favor local)"
)

// ErrNoCandidates is returned when both copies are nil. Callers are expected
// to treat that as "record does not exist" before resolving.
var ErrNoCandidates = errors.New("conflict: no candidate records")

type Decision struct {
	Winner *models.Record
	Source Source
	Reason string
}

// Resolver is stateless apart from its logger and safe for concurrent use.
type Resolver struct {
	logger logging.Logger
}

func NewResolver(l logging.Logger) *Resolver {
	return &Resolver{logger: l.With("module", "conflict")}
}

// Resolve logs both candidates in full and then applies last-write-wins.
func (r *Resolver) Resolve(ctx context.Context, local, remote *models.Record) (Decision, error) {
	r.logger.Info(ctx, "CONFLICT_CANDIDATES", "local", local, "remote", remote)
	return Decide(local, remote)
}

// Decide is the pure decision function behind Resolve.
func Decide(local, remote *models.Record) (Decision, error) {
	switch {
	case local == nil && remote == nil:
		return Decision{}, ErrNoCandidates
	case remote == nil:
		return Decision{Winner: local, Source: SourceLocal, Reason: ReasonNoRemote}, nil
	case local == nil:
		return Decision{Winner: remote, Source: SourceRemote, Reason: ReasonNoLocal}, nil
	case remote.UpdatedAt > local.UpdatedAt:
		return Decision{Winner: remote, Source: SourceRemote, Reason: ReasonRemoteNewer}, nil
	default:
		return Decision{Winner: local, Source: SourceLocal, Reason: ReasonLocalNewerEq}, nil
	}
}
