package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultIdentityPath resolves the platform-specific location of the device
// identity file. Resolved once at startup and injected into the identity
// store; the core never branches on the platform again.
func DefaultIdentityPath() string {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("ProgramData"); dir != "" {
			return filepath.Join(dir, "cattleherd", "device.id")
		}
		return filepath.Join(`C:\ProgramData`, "cattleherd", "device.id")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "/Library/Application Support/cattleherd/device.id"
		}
		return filepath.Join(home, "Library", "Application Support", "cattleherd", "device.id")
	default:
		return "/var/lib/cattleherd/device.id"
	}
}
