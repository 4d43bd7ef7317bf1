// Package client talks to the habitsync record server.
//
// # Overview
//
// The package provides:
//  1. The Client contract used by the CLI services and the sync engine:
//     Register/GetSalt/Login, Ping, zone setup, change fetch and send, and
//     a push subscription.
//  2. GRPCClient, the gRPC implementation. It injects the access token and
//     device id into every call, ships record assets inline and stages
//     downloaded ones in the asset file store, and maps gRPC statuses to
//     the remote store errors in package common.
//  3. InitDatabase, which opens the on-device SQLite database and applies
//     the embedded goose migrations.
//
// # Error Handling
//
// Every error returned by a remote call matches one of the common remote
// store errors with errors.Is (ErrUnavailable, ErrZoneNotFound,
// ErrConflict, ...) or is wrapped as "rpc error".
package client
