package shortcut

import (
	"strings"

	"noelle/internal/domain"
)

// Accelerators used by the app.
const (
	SendMessage = "CmdOrCtrl+Enter"
	ShowWindow  = "CmdOrCtrl+N"
)

// IsKeyDown reports whether in is a key press of key, case-insensitively.
func IsKeyDown(in domain.KeyInput, key string) bool {
	return in.Type == "keyDown" && strings.EqualFold(in.Key, key)
}

// CmdOrCtrl reports whether the platform's primary modifier is held.
func CmdOrCtrl(in domain.KeyInput, platform string) bool {
	if platform == "darwin" {
		return in.Meta
	}
	return in.Control
}
