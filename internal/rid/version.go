package rid

import "fmt"

// Version selects which revision of the F3411 standard the service speaks.
type Version string

const (
	// VersionF3411v19 is the original 2019 revision.
	VersionF3411v19 Version = "F3411-19"

	// VersionF3411v22a is the 2022a revision.
	VersionF3411v22a Version = "F3411-22a"
)

// Parameters are the network-requirement constants of one standard revision.
// The observation core consumes only this version-agnostic set.
type Parameters struct {
	// Largest view diagonal the display endpoint serves at all.
	MaxDiagonalKm float64

	// Largest view diagonal served with per-flight detail; above this the
	// response is clustered.
	MaxDetailsDiagonalKm float64

	// Minimum half-extent of an emitted cluster in meters.
	MinObfuscationDistanceM float64

	// Minimum cluster area as a percentage of the requested view area.
	MinClusterSizePercent float64
}

// ParseVersion validates a configured version string.
func ParseVersion(s string) (Version, error) {
	switch Version(s) {
	case VersionF3411v19, VersionF3411v22a:
		return Version(s), nil
	default:
		return "", fmt.Errorf("unknown RID version %q", s)
	}
}

// Parameters returns the network-requirement constants for the version.
func (v Version) Parameters() Parameters {
	switch v {
	case VersionF3411v22a:
		return Parameters{
			MaxDiagonalKm:           7,
			MaxDetailsDiagonalKm:    2,
			MinObfuscationDistanceM: 300,
			MinClusterSizePercent:   0.5,
		}
	default:
		return Parameters{
			MaxDiagonalKm:           3.6,
			MaxDetailsDiagonalKm:    1,
			MinObfuscationDistanceM: 300,
			MinClusterSizePercent:   0.5,
		}
	}
}
