package latex

import (
	"fmt"
	"strings"
)

// ValidDiagnostic is the diagnostic reported when every check passes.
const ValidDiagnostic = "Syntax appears valid"

// Validation is the advisory outcome of Validate.
type Validation struct {
	Valid      bool
	Diagnostic string
}

// Validate runs structural sanity checks on sanitized text. The first failing
// check determines the result. Callers annotate rather than reject.
func Validate(text string) Validation {
	if n := BraceImbalance(text); n != 0 {
		return Validation{
			Diagnostic: fmt.Sprintf("Unbalanced braces: %+d (opening minus closing)", n),
		}
	}
	if strings.Count(text, "$")%2 != 0 {
		return Validation{Diagnostic: "Unbalanced math delimiters ($)"}
	}
	if strings.Contains(text, `\\\`) {
		return Validation{Diagnostic: "Too many consecutive backslashes"}
	}
	return Validation{Valid: true, Diagnostic: ValidDiagnostic}
}

// BraceImbalance returns the count of { minus the count of }.
func BraceImbalance(text string) int {
	return strings.Count(text, "{") - strings.Count(text, "}")
}
