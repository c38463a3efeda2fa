// Package version exposes build metadata of the doorbell binaries.
//
// Version, Commit and BuildTime are injected with -ldflags -X at build time.
package version
