// Package envvars parses the bracket/brace environment variable syntax
// `[{key, value}, {key2, value2}]` into typed environment variables.
package envvars

import (
	"errors"
	"regexp"
	"strings"

	builderrors "github.com/narvanalabs/codebuild-runner/internal/builder/errors"
	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// ErrSyntax is returned for any input that does not match the record syntax.
var ErrSyntax = errors.New(builderrors.MsgEnvVariableSyntax)

var (
	recordSeparator = regexp.MustCompile(`\}\s*,\s*\{`)
	listOpen        = regexp.MustCompile(`\[\s*\{`)
	listClose       = regexp.MustCompile(`\}\s*\]`)
)

const escapedComma = `\,`

// Parse parses input into environment variables tagged with kind. Empty
// input yields an empty slice. Duplicate names are kept.
func Parse(input string, kind models.EnvVarKind) ([]models.EnvironmentVariable, error) {
	result := []models.EnvironmentVariable{}
	if input == "" {
		return result, nil
	}

	s := recordSeparator.ReplaceAllString(input, "},{")
	s = listOpen.ReplaceAllString(s, "[{")
	s = listClose.ReplaceAllString(s, "}]")
	s = strings.NewReplacer("\n", "", "\t", "").Replace(s)
	s = strings.TrimSpace(s)

	if len(s) < 4 || !strings.HasPrefix(s, "[{") || !strings.HasSuffix(s, "}]") {
		return nil, ErrSyntax
	}
	body := s[2 : len(s)-2]

	if !strings.Contains(body, ",") {
		return nil, ErrSyntax
	}

	for _, record := range strings.Split(body, "},{") {
		v, err := parseRecord(record, kind)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// parseRecord parses a single "key, value" record. Exactly one comma must be
// unescaped.
func parseRecord(record string, kind models.EnvVarKind) (models.EnvironmentVariable, error) {
	if strings.Count(strings.ReplaceAll(record, escapedComma, ""), ",") != 1 {
		return models.EnvironmentVariable{}, ErrSyntax
	}

	split := unescapedComma(record)
	key := strings.TrimSpace(record[:split])
	value := strings.TrimSpace(record[split+1:])
	if key == "" || value == "" {
		return models.EnvironmentVariable{}, ErrSyntax
	}

	return models.EnvironmentVariable{
		Name:  unescape(key),
		Value: unescape(value),
		Kind:  kind,
	}, nil
}

// unescapedComma returns the index of the first comma not preceded by a
// backslash, or -1.
func unescapedComma(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == ',' && (i == 0 || s[i-1] != '\\') {
			return i
		}
	}
	return -1
}

func unescape(s string) string {
	return strings.ReplaceAll(s, escapedComma, ",")
}

// Format renders variables back into the record syntax, escaping commas.
func Format(vars []models.EnvironmentVariable) string {
	if len(vars) == 0 {
		return ""
	}
	escape := strings.NewReplacer(",", escapedComma)
	records := make([]string, len(vars))
	for i, v := range vars {
		records[i] = "{" + escape.Replace(v.Name) + ", " + escape.Replace(v.Value) + "}"
	}
	return "[" + strings.Join(records, ", ") + "]"
}
