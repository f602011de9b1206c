package scene

import (
	"strings"

	"golang.org/x/text/cases"
)

// foldName normalizes a name for comparison. A Caser holds state, so a new
// one is built per call.
func foldName(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}
