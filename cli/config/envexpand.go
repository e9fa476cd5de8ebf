package config

import (
	"os"
	"regexp"
)

// placeholder matches ${NAME} and ${NAME:-fallback}. A doubled $$ is kept
// as a literal dollar sign.
var placeholder = regexp.MustCompile(`\$\$|\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment variables into a config document.
//
// A variable that is unset or empty takes its fallback, or the empty string
// when none is given. Missing values surface later, when the affected field
// is validated.
func ExpandEnv(doc string) string {
	return placeholder.ReplaceAllStringFunc(doc, func(m string) string {
		if m == "$$" {
			return "$"
		}
		sub := placeholder.FindStringSubmatch(m)
		if v := os.Getenv(sub[1]); v != "" {
			return v
		}
		return sub[2]
	})
}
