package suggestions

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// InitialVersion is suggested when the project has no semver tag yet.
const InitialVersion = "v0.1.0"

// LatestVersion returns the highest valid semver tag, or "".
// Tags without the leading v are accepted.
func LatestVersion(tags []string) string {
	latest := ""
	for _, tag := range tags {
		v := normalizeTag(tag)
		if !semver.IsValid(v) || semver.Prerelease(v) != "" {
			continue
		}
		if latest == "" || semver.Compare(v, latest) > 0 {
			latest = v
		}
	}
	return latest
}

// NextVersion bumps current: minor when features shipped, patch otherwise.
// An invalid or empty current yields InitialVersion.
func NextVersion(current string, hasFeatures bool) string {
	v := normalizeTag(current)
	if !semver.IsValid(v) {
		return InitialVersion
	}

	// Canonical is vMAJOR.MINOR.PATCH[-pre]; build metadata is dropped.
	core := strings.TrimPrefix(semver.Canonical(v), "v")
	if pre := semver.Prerelease(v); pre != "" {
		core = strings.TrimSuffix(core, pre)
	}
	parts := strings.SplitN(core, ".", 3)
	major, _ := strconv.Atoi(parts[0])
	minor, _ := strconv.Atoi(parts[1])
	patch, _ := strconv.Atoi(parts[2])

	if hasFeatures {
		return fmt.Sprintf("v%d.%d.0", major, minor+1)
	}
	return fmt.Sprintf("v%d.%d.%d", major, minor, patch+1)
}

func normalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag != "" && !strings.HasPrefix(tag, "v") {
		tag = "v" + tag
	}
	return tag
}
