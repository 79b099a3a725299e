package hunt

import (
	"os"
	"path/filepath"

	"github.com/digggggmori-pixel/ferret-hunt/internal/registry"
)

// Environment is the view of the host a hunt reads from
type Environment struct {
	Registry registry.Backend
	// UsersDir holds one profile directory per user, e.g. C:\Users
	UsersDir string
	// ProgramData is the machine-wide application data folder
	ProgramData string
}

// LocalEnvironment describes the running host
func LocalEnvironment() Environment {
	systemDrive := os.Getenv("SYSTEMDRIVE")
	if systemDrive == "" {
		systemDrive = "C:"
	}
	programData := os.Getenv("PROGRAMDATA")
	if programData == "" {
		programData = systemDrive + `\ProgramData`
	}

	return Environment{
		Registry:    registry.Default(),
		UsersDir:    systemDrive + `\Users`,
		ProgramData: filepath.Clean(programData),
	}
}

// WithRegistry returns a copy of e reading from b
func (e Environment) WithRegistry(b registry.Backend) Environment {
	e.Registry = b
	return e
}
