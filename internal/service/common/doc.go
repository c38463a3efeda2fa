// Package common holds helpers shared by several services.
//
// It provides a gRPC health client wrapper with per-call timeouts and a
// helper to detect the current system actor (hostname/username) a client
// announces itself as.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
