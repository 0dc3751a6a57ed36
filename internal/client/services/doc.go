// Package services contains the application services of the dailysync
// client.
//
// SyncEngine is the offline-first core: writes land in the local store
// first and are pushed to the remote store best-effort; reads reconcile
// the local and remote copies through the conflict resolver and repair the
// local cache. Pending writes are reconciled by SyncPending (one bounded
// retry cycle per record) or PushBatch (remote batch writes).
//
// SessionService keeps the owner id and access token used by the CLI.
package services
