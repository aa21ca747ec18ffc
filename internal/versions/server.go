package versions

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// MinimumServerVersion is the first Home Assistant release with the auth API used for onboarding
const MinimumServerVersion = "0.77.0"

// serverVersionPattern splits Home Assistant versions such as 2024.10.0b3 or 2024.11.0.dev20241001
var serverVersionPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)(?:\.(\d+))?\.?(.*)$`)

// ParseServerVersion parses a Home Assistant version. Beta and dev suffixes become
// semver prereleases, so 2024.10.0b3 sorts before 2024.10.0.
func ParseServerVersion(version string) (*semver.Version, error) {
	version = strings.TrimSpace(version)
	m := serverVersionPattern.FindStringSubmatch(version)
	if m == nil {
		return nil, fmt.Errorf("invalid Home Assistant version %q", version)
	}

	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	normalized := fmt.Sprintf("%s.%s.%s", m[1], m[2], patch)
	if pre := strings.TrimLeft(m[4], ".-"); pre != "" {
		normalized += "-" + pre
	}

	v, err := semver.NewVersion(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid Home Assistant version %q: %w", version, err)
	}
	return v, nil
}

// IsSupportedServer reports whether version is at least MinimumServerVersion.
// It returns an error when the version cannot be parsed.
func IsSupportedServer(version string) (bool, error) {
	v, err := ParseServerVersion(version)
	if err != nil {
		return false, err
	}
	return !v.LessThan(semver.MustParse(MinimumServerVersion)), nil
}
