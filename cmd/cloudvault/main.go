// Command cloudvault is the command-line client for a Cloud Vault file store.
//
// Build with version information:
//
//	go build -ldflags "-X github.com/cloudvault/cloudvault-cli/internal/version.Version=v0.3.1 \
//	  -X github.com/cloudvault/cloudvault-cli/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	  ./cmd/cloudvault
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cloudvault/cloudvault-cli/internal/api"
	"github.com/cloudvault/cloudvault-cli/internal/cli"
	"github.com/cloudvault/cloudvault-cli/internal/diskspace"
	"github.com/cloudvault/cloudvault-cli/internal/filesync"
)

func main() {
	if err := cli.Execute(); err != nil {
		if api.IsCanceled(err) {
			fmt.Fprintln(os.Stderr, "Cancelled")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode separates "log in first", unsupported operations, a full disk
// and Ctrl+C from other failures.
func exitCode(err error) int {
	switch {
	case api.IsCanceled(err):
		return 130
	case errors.Is(err, cli.ErrNotLoggedIn):
		return 2
	case errors.Is(err, filesync.ErrNotSupported):
		return 3
	case diskspace.IsInsufficientSpaceError(err):
		return 4
	default:
		return 1
	}
}
