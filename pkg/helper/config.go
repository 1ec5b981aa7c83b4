package helper

import (
	"os"
	"path/filepath"
)

// SystemConfigDir is the last place searched for configuration files
const SystemConfigDir = "/etc/wsbridge"

// DefaultPIDFile is used when no PID file is configured
const DefaultPIDFile = "/var/run/wsbridge.pid"

// GetCfgPath returns the path to the configuration file.
//
// Priority:
// 1. If filename is an absolute path, return it directly.
// 2. Check ./{filename} and ./configs/{filename}
// 3. Otherwise, fallback to /etc/wsbridge/{filename}
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}

	if filepath.IsAbs(filename) {
		return filename
	}

	for _, dir := range []string{".", "configs"} {
		if p := existing(filepath.Join(dir, filename)); p != "" {
			return p
		}
	}

	return filepath.Join(SystemConfigDir, filename)
}

// GetPIDPath resolves a PID file location. Relative names are anchored to the
// working directory.
func GetPIDPath(filename string) string {
	if filename == "" {
		return DefaultPIDFile
	}
	if filepath.IsAbs(filename) {
		return filename
	}
	abs, err := filepath.Abs(filename)
	if err != nil {
		return DefaultPIDFile
	}
	return abs
}

func existing(candidate string) string {
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	abs, err := filepath.Abs(candidate)
	if err != nil {
		return ""
	}
	return abs
}
