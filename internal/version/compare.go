package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckVersionCompatibility checks whether a config file written for configVersion
// can be loaded by a library at libraryVersion. Returns nil if compatible.
//
// Compatibility Rules:
//   - If either version is "main" (development build), or configVersion is empty, the check is skipped
//   - Major versions must match exactly
//   - The config minor version must not be newer than the library minor version
//   - Patch versions can differ
//
// Examples:
//   - Library 1.2.0, Config 1.2.0 -> OK
//   - Library 1.3.0, Config 1.2.4 -> OK (config is older)
//   - Library 1.2.0, Config 1.3.0 -> ERROR (config needs newer fields)
//   - Library 2.0.0, Config 1.2.0 -> ERROR (major differs)
func CheckVersionCompatibility(libraryVersion, configVersion string) error {
	libraryVersion = strings.TrimPrefix(libraryVersion, "v")
	configVersion = strings.TrimPrefix(configVersion, "v")

	if configVersion == "" || libraryVersion == "main" || configVersion == "main" {
		return nil
	}

	librarySemver, err := semver.NewVersion(libraryVersion)
	if err != nil {
		return fmt.Errorf("invalid library version '%s': %w", libraryVersion, err)
	}

	configSemver, err := semver.NewVersion(configVersion)
	if err != nil {
		return fmt.Errorf("invalid config version '%s': %w", configVersion, err)
	}

	if librarySemver.Major() != configSemver.Major() {
		return fmt.Errorf("major version mismatch: library is %d.x.x but config requires %d.x.x",
			librarySemver.Major(), configSemver.Major())
	}

	if configSemver.Minor() > librarySemver.Minor() {
		return fmt.Errorf("minor version mismatch: library is %d.%d.x but config requires %d.%d.x",
			librarySemver.Major(), librarySemver.Minor(),
			configSemver.Major(), configSemver.Minor())
	}

	return nil
}
