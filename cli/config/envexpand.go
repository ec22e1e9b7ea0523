// Package config handles mwi.yaml loading, dotenv files and MWI_* overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// envRef matches, in order of preference:
//   - $$                  a literal "$"
//   - ${VAR}              the value of VAR, or empty
//   - ${VAR:-default}     the value of VAR, or default when unset or empty
//   - ${VAR:?message}     the value of VAR, or an error when unset or empty
var envRef = regexp.MustCompile(`\$\$|\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// MissingEnvError lists required variables (${VAR:?message}) that were unset.
type MissingEnvError struct {
	// Missing holds "VAR: message" entries in order of appearance.
	Missing []string
}

func (e *MissingEnvError) Error() string {
	return "required environment variables not set: " + strings.Join(e.Missing, "; ")
}

// ExpandEnv expands environment references in a config document. Lines whose
// first non-blank character is '#' are YAML comments and are left as they are,
// so commented-out settings never demand their variables.
//
// Every missing required variable is reported in one *MissingEnvError.
func ExpandEnv(input string) (string, error) {
	var missing []string
	lines := strings.SplitAfter(input, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lines[i] = envRef.ReplaceAllStringFunc(line, func(match string) string {
			if match == "$$" {
				return "$"
			}
			groups := envRef.FindStringSubmatch(match)
			name, op, arg := groups[1], groups[2], groups[3]

			if value := os.Getenv(name); value != "" {
				return value
			}
			switch op {
			case ":-":
				return arg
			case ":?":
				if arg == "" {
					arg = "required"
				}
				missing = append(missing, name+": "+arg)
			}
			return ""
		})
	}
	if len(missing) > 0 {
		return "", &MissingEnvError{Missing: missing}
	}
	return strings.Join(lines, ""), nil
}

// expandConfig expands data read from path.
func expandConfig(path string, data []byte) ([]byte, error) {
	expanded, err := ExpandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return []byte(expanded), nil
}
