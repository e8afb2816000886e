package dataset

import "strings"

// ResolveColumn returns the first alias present in the available column names, compared case
// insensitively. The returned name is spelled as it appears in available.
func ResolveColumn(available []string, aliases []string) (string, bool) {
	lowered := make(map[string]string, len(available))
	for _, name := range available {
		l := strings.ToLower(strings.TrimSpace(name))
		if _, exists := lowered[l]; !exists {
			lowered[l] = name
		}
	}
	for _, alias := range aliases {
		if name, exists := lowered[strings.ToLower(alias)]; exists {
			return name, true
		}
	}
	return "", false
}
