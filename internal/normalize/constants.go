package normalize

import "strings"

// MaxChars enumerates the character-limit categories consulted by the tag
// and string-truncation rules. The concrete numbers are config-driven (see
// StoreConfig); these are the defaults used when a config leaves them zero.
type MaxChars int

const (
	MaxCharsTagKey MaxChars = iota
	MaxCharsTagValue
	MaxCharsCulprit
	MaxCharsMessage
)

// DefaultLimit returns the built-in default limit for mc.
func (mc MaxChars) DefaultLimit() int {
	switch mc {
	case MaxCharsTagKey:
		return 32
	case MaxCharsTagValue:
		return 200
	case MaxCharsCulprit:
		return 200
	case MaxCharsMessage:
		return 8192
	default:
		return 0
	}
}

// validPlatforms is the whitelist an event's platform field must belong to.
var validPlatforms = map[string]bool{
	"as3":        true,
	"c":          true,
	"cfml":       true,
	"cocoa":      true,
	"csharp":     true,
	"elixir":     true,
	"go":         true,
	"groovy":     true,
	"haskell":    true,
	"java":       true,
	"javascript": true,
	"native":     true,
	"node":       true,
	"objc":       true,
	"other":      true,
	"perl":       true,
	"php":        true,
	"python":     true,
	"ruby":       true,
}

// invalidEnvironments lists values that are never accepted for
// Event.Environment, case-sensitively.
var invalidEnvironments = map[string]bool{
	"none": true,
}

// invalidReleases lists values that are never accepted for Event.Release,
// compared case-insensitively.
var invalidReleases = []string{
	"latest",
}

func isValidPlatform(platform string) bool {
	return validPlatforms[platform]
}

func isValidEnvironment(environment string) bool {
	return !invalidEnvironments[environment]
}

func isValidRelease(release string) bool {
	for _, invalid := range invalidReleases {
		if strings.EqualFold(release, invalid) {
			return false
		}
	}
	return true
}
