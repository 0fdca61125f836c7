package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Operating system constants
const (
	OSDarwin  = "darwin"
	OSWindows = "windows"
	OSLinux   = "linux"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// DownloadsDirName is the conventional per-user downloads folder
const DownloadsDirName = "Downloads"

// GetHomeDownloadsDir returns the standard Downloads directory for the user
func GetHomeDownloadsDir() (string, error) {
	if runtime.GOOS == OSWindows {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			return filepath.Join(profile, DownloadsDirName), nil
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, DownloadsDirName), nil
}

// DefaultOutputDir returns the Downloads directory when it exists, else "".
// An empty result means the user must choose a directory explicitly.
func DefaultOutputDir() string {
	dir, err := GetHomeDownloadsDir()
	if err != nil {
		return ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ""
	}
	return filepath.ToSlash(dir)
}

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}
