package platform

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Tool names
const (
	FFmpegTool  = "ffmpeg"
	FFprobeTool = "ffprobe"
	YTDLPTool   = "yt-dlp"
)

// BundledToolsDir is where packaged builds ship the media tools, relative to
// the executable's directory.
var BundledToolsDir = filepath.Join("assets", "ffmpeg", "bin")

// ExecutableDir returns the directory of the running binary, or "" if it
// cannot be determined.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// ExecutableName appends the platform executable suffix to name.
func ExecutableName(name string) string {
	if runtime.GOOS == OSWindows && filepath.Ext(name) != ".exe" {
		return name + ".exe"
	}
	return name
}

// FindExecutable finds a tool by explicit path, then under
// <baseDir>/assets/ffmpeg/bin, then on PATH, then in common install
// locations. It returns "" when nothing is found.
func FindExecutable(name, explicitPath, baseDir string) string {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err == nil {
			return explicitPath
		}
	}

	file := ExecutableName(name)

	if baseDir != "" {
		bundled := filepath.Join(baseDir, BundledToolsDir, file)
		if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
			return bundled
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path
	}

	var commonPaths []string
	switch runtime.GOOS {
	case OSDarwin:
		commonPaths = []string{
			"/usr/local/bin/" + name,
			"/opt/homebrew/bin/" + name,
		}
	case OSLinux:
		commonPaths = []string{
			"/usr/bin/" + name,
			"/usr/local/bin/" + name,
		}
	case OSWindows:
		commonPaths = []string{
			`C:\ffmpeg\bin\` + file,
			`C:\Program Files\ffmpeg\bin\` + file,
		}
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
