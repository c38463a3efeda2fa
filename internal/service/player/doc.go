// Package player plays audio clips through an external command-line player.
//
// Clips are registered by name with Load and played with Play, which blocks
// until the player process exits.
package player
