package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// GetDefaultConfigPaths returns the default config paths for the current
// operating system. The executable directory is always searched first so a
// portable install can carry its own config.
func GetDefaultConfigPaths() ([]string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("error fetching executable path: %w", err)
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	var configPaths []string
	switch runtime.GOOS {
	case "windows":
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "respire-web"),
		}
	default:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, ".config", "respire-web"),
		}
	}

	return configPaths, nil
}
