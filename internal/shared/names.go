package shared

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CanonicalName trims, collapses whitespace and title-cases controlled
// vocabulary names (sports, levels, positions) so lookups and unique keys
// compare predictably. Free-form fields like team names are left alone.
func CanonicalName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ToLower(name))
}
