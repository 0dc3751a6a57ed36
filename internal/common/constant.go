// Package common contains shared constants and sentinel errors used across
// the dailysync client and the remote document store.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// OperationIDHeaderName carries the client-side correlation id of the
// operation that issued a remote call. The server echoes it in its logs.
const OperationIDHeaderName = "op_id"
