//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"

	"github.com/oshokin/doorbell/internal/domain/doorbell"
)

// DetectActor gathers host and user information identifying this client.
func DetectActor() (*doorbell.Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &doorbell.Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
