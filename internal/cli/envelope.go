package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
)

// errorEnvelope is the structured failure object written to stderr on
// any command failure, per spec §7: {error, detail, hint?}.
type errorEnvelope struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
	Hint   string `json:"hint,omitempty"`
}

// writeError renders err as the §7 envelope to stderr — JSON always (so
// scripts can depend on its shape) plus, outside --json mode, a coloured
// one-line summary — and returns the process exit code for err's kind.
func writeError(stderr io.Writer, err error, jsonMode bool) int {
	var e *engineerr.Error
	kind := engineerr.KindOf(err)
	detail := err.Error()
	hint := ""
	if asError(err, &e) {
		detail = e.Detail
		hint = e.Hint
	}

	env := errorEnvelope{Error: kind.String(), Detail: detail, Hint: hint}
	data, _ := json.Marshal(env)
	fmt.Fprintln(stderr, string(data))

	if !jsonMode {
		red := color.New(color.FgRed, color.Bold)
		red.Fprintf(stderr, "error: ")
		fmt.Fprintf(stderr, "%s: %s\n", kind, detail)
		if hint != "" {
			fmt.Fprintf(stderr, "  hint: %s\n", hint)
		}
	}
	return kind.ExitCode()
}

func asError(err error, target **engineerr.Error) bool {
	for err != nil {
		if e, ok := err.(*engineerr.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// writeSuccess renders v as the --json success envelope when jsonMode is
// set; otherwise it calls human for a plain-text rendering.
func writeSuccess(stdout io.Writer, v any, jsonMode bool, human func(io.Writer, any)) {
	if jsonMode {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}
	human(stdout, v)
}
