package cli

import (
	"os"

	"github.com/jguida941/adaptive-hashmap-studio/config"
	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
)

// fileExists reports whether path names a regular, readable file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// loadConfig reads the guardrail record from path, or returns the
// defaults when path is empty (spec §6 "optional --config <path>").
func loadConfig(path string) (config.Guardrails, error) {
	if path == "" {
		return config.Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return config.Guardrails{}, engineerr.Wrap(engineerr.IO, err, "reading config "+path)
	}
	return config.Load(data)
}
