package cli

import "github.com/jguida941/adaptive-hashmap-studio/engineerr"

// reclassify wraps an error cobra itself produced (bad flag syntax,
// unknown command/flag, arg-count mismatch) as BadInput: these never
// reach a command's RunE, so they were never classified by the engine.
func reclassify(err error) error {
	return engineerr.Wrap(engineerr.BadInput, err, err.Error())
}
