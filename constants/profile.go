package constants

import "strings"

// ProfileName identifies one extraction configuration.
type ProfileName string

const (
	ProfileItemized ProfileName = "itemized"
	ProfileScanned  ProfileName = "scanned"
)

var allProfiles = []ProfileName{
	ProfileItemized,
	ProfileScanned,
}

func ProfileNames() []string {
	result := make([]string, len(allProfiles))
	for i, p := range allProfiles {
		result[i] = string(p)
	}
	return result
}

// CanonicalizeProfile maps user input (including a few aliases) to a profile name.
func CanonicalizeProfile(input string) (ProfileName, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return ProfileItemized, true
	}

	synonyms := map[string]ProfileName{
		"default": ProfileItemized,
		"llama":   ProfileItemized,
		"items":   ProfileItemized,
		"sample":  ProfileScanned,
		"ocr":     ProfileScanned,
		"scan":    ProfileScanned,
	}
	if p, ok := synonyms[normalized]; ok {
		return p, true
	}

	for _, p := range allProfiles {
		if normalized == string(p) {
			return p, true
		}
	}
	return "", false
}
