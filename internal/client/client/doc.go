// Package client contains the client-side building blocks that talk to
// storage: the local SQLite bootstrap and the remote document stores.
//
// # Remote stores
//
// RemoteStore is the contract the sync engine depends on. Documents are
// addressed by the path produced by internal/client/paths and carry the
// stored shape produced by models.ToStorage. Two implementations exist:
//
//   - GRPCClient talks to the dailysync document server. The access token is
//     injected into every call by an interceptor, and gRPC status codes are
//     mapped to the common error taxonomy.
//   - S3Store keeps one JSON object per path in a bucket.
//
// Both treat an absent document as (nil, nil) on Get. Every call honours
// the deadline of its context; an expired deadline surfaces as
// common.ErrNetwork.
//
// # Local database
//
// InitDatabase opens the SQLite file and applies the embedded goose
// migrations; RunMigrations can be called on an already open *sql.DB.
package client
