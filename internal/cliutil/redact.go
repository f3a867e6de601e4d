package cliutil

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[redacted]"

var secretKeyPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(secretKeys(), "|") + `)\b(\s*[:=]\s*)(["']?)([^"'\s]+)(["']?)`)

func secretKeys() []string {
	// Installer and service output routinely echoes environment dumps;
	// these are the credentials AI tooling commonly carries.
	keys := []string{
		"HF_TOKEN",
		"HUGGING_FACE_HUB_TOKEN",
		"CIVITAI_API_KEY",
		"CIVITAI_TOKEN",
		"OPENAI_API_KEY",
		"WANDB_API_KEY",
		"API_KEY",
		"ACCESS_TOKEN",
		"GITHUB_TOKEN",
	}
	escaped := make([]string, len(keys))
	for i, key := range keys {
		escaped[i] = regexp.QuoteMeta(key)
	}
	return escaped
}

// RedactSecrets masks known credential assignments in user-facing output so a
// token pasted into a service's environment never lands in the log pane.
func RedactSecrets(message string) string {
	if message == "" {
		return message
	}
	return secretKeyPattern.ReplaceAllString(message, "$1$2$3"+redactedPlaceholder+"$5")
}
