package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another client runs on this host.
var ErrAlreadyRunning = errors.New("another doorbell client is already running")

// processLister enumerates running processes.
type processLister func() ([]ps.Process, error)

// ensureSingleInstance fails when a process other than pid runs the executable name.
func ensureSingleInstance(list processLister, pid int, name string) error {
	processList, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == pid || process.Executable() != name {
			continue
		}

		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, process.Pid())
	}

	return nil
}

// currentExecutable returns the executable name of this process as go-ps reports it.
func currentExecutable() (string, error) {
	self, err := ps.FindProcess(os.Getpid())
	if err == nil && self != nil {
		return self.Executable(), nil
	}

	path, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("executable path: %w", err)
	}

	return filepath.Base(path), nil
}
