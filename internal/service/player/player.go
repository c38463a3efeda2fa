package player

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

var (
	// ErrUnsupportedOS indicates there is no default player for the current OS.
	ErrUnsupportedOS = errors.New("unsupported operating system")
	// ErrUnknownClip is returned when playing a clip that was never loaded.
	ErrUnknownClip = errors.New("unknown clip")
)

// Player runs an external command for every playback.
type Player struct {
	// command is the player executable followed by its arguments.
	command []string
	// clips maps clip names to file paths.
	clips map[string]string
	// mu protects clips.
	mu sync.RWMutex
}

// New creates a player using command, or the OS default player when command is empty:
// - macOS: `afplay`
// - Linux: `mpg123 -q`.
func New(command []string) (*Player, error) {
	if len(command) == 0 {
		var err error

		command, err = defaultCommand()
		if err != nil {
			return nil, err
		}
	}

	return &Player{
		command: command,
		clips:   make(map[string]string),
	}, nil
}

// Load registers the audio file at path under name.
func (p *Player) Load(name, path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("load clip %q: %w", name, err)
	}

	if info.IsDir() {
		return fmt.Errorf("load clip %q: %s is a directory", name, path)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.clips[name] = path

	return nil
}

// Play plays the named clip and blocks until the player exits.
func (p *Player) Play(ctx context.Context, name string) error {
	p.mu.RLock()
	path, ok := p.clips[name]
	p.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownClip, name)
	}

	args := append(append([]string(nil), p.command[1:]...), path)

	//nolint:gosec // The player command comes from the operator's settings.
	output, err := exec.CommandContext(ctx, p.command[0], args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			return fmt.Errorf("play %q: %w: %s", name, err, msg)
		}

		return fmt.Errorf("play %q: %w", name, err)
	}

	return nil
}

// defaultCommand picks the built-in player of the current OS.
func defaultCommand() ([]string, error) {
	osName := strings.ToLower(runtime.GOOS)

	switch {
	case strings.Contains(osName, "darwin"):
		return []string{"afplay"}, nil
	case strings.Contains(osName, "linux"):
		return []string{"mpg123", "-q"}, nil
	default:
		return nil, fmt.Errorf("no default player for %s, set player_command: %w", runtime.GOOS, ErrUnsupportedOS)
	}
}
