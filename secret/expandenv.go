package secret

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

var bracedVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands environment references in s the way os.ExpandEnv
// does, with two refinements: a braced reference `${VAR}` whose variable is
// unset is an error instead of silently becoming empty, and `$$` emits a
// literal dollar sign.
func ExpandEnvStrict(s string) (string, error) {
	// Mask escaped dollars first so `$${FOO}` stays out of both the
	// missing-variable scan and os.ExpandEnv.
	const literalDollar = "\x00authcache-dollar\x00"
	masked := strings.ReplaceAll(s, "$$", literalDollar)

	var missing []string
	for _, m := range bracedVar.FindAllStringSubmatch(masked, -1) {
		name := m[1]
		if _, ok := os.LookupEnv(name); !ok && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("secret: missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return strings.ReplaceAll(os.ExpandEnv(masked), literalDollar, "$"), nil
}
