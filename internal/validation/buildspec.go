package validation

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// CheckBuildspec validates an inline buildspec override. Single-line values
// are treated as a path inside the source and are not inspected.
func CheckBuildspec(buildspec string) string {
	if !strings.Contains(buildspec, "\n") {
		return ""
	}

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(buildspec), &doc); err != nil {
		return "Buildspec override is not valid YAML: " + err.Error()
	}
	if _, ok := doc["version"]; !ok {
		return "Buildspec override must declare a version"
	}
	return ""
}
