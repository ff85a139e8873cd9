// Package validation provides the pass/fail predicates run against a build
// configuration before any network call is made.
package validation

import (
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// ReservedEnvPrefix is reserved by the remote build service.
const ReservedEnvPrefix = "CODEBUILD_"

// Timeout bounds accepted by the remote build service, in minutes.
const (
	MinTimeoutMinutes = 5
	MaxTimeoutMinutes = 480
)

// Messages returned by the validators.
const (
	ProjectRequiredError           = "CodeBuild project name is required"
	SourceControlTypeRequiredError = "Source control type is required and must be 'workspace' or 'project'"
	RegionRequiredError            = "AWS region is required"
	InvalidTimeoutOverrideError    = "Build timeout override must be an integer between 5 and 480 minutes"
	InvalidGitCloneDepthError      = "Git clone depth override must be 'Full' or a non-negative integer"
	ProxyPortError                 = "Proxy port must be an integer between 0 and 65535"
)

// CheckEssentialConfig returns "" when every required field is present, or a
// message describing the first missing one.
func CheckEssentialConfig(cfg models.BuildConfig) string {
	if strings.TrimSpace(cfg.ProjectName) == "" {
		return ProjectRequiredError
	}
	switch cfg.SourceControlType {
	case models.SourceControlWorkspace, models.SourceControlProject:
	default:
		return SourceControlTypeRequiredError
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return RegionRequiredError
	}
	if cfg.ProxyPort != "" {
		port, err := strconv.Atoi(cfg.ProxyPort)
		if err != nil || port < 0 || port > 65535 {
			return ProxyPortError
		}
	}
	return ""
}

// CheckStartBuildOverrides returns "" when every non-empty override is
// well formed, or a message describing the first invalid one. Empty
// overrides are always accepted.
func CheckStartBuildOverrides(cfg models.BuildConfig) string {
	enums := []struct {
		field string
		value string
		valid []string
	}{
		{"artifact type override", cfg.ArtifactTypeOverride, values(types.ArtifactsType("").Values())},
		{"artifact namespace override", cfg.ArtifactNamespaceOverride, values(types.ArtifactNamespace("").Values())},
		{"artifact packaging override", cfg.ArtifactPackagingOverride, values(types.ArtifactPackaging("").Values())},
		{"cache type override", cfg.CacheTypeOverride, values(types.CacheType("").Values())},
		{"environment type override", cfg.EnvironmentTypeOverride, values(types.EnvironmentType("").Values())},
		{"compute type override", cfg.ComputeTypeOverride, values(types.ComputeType("").Values())},
		{"CloudWatch logs status override", cfg.CloudWatchLogsStatusOverride, values(types.LogsConfigStatusType("").Values())},
		{"S3 logs status override", cfg.S3LogsStatusOverride, values(types.LogsConfigStatusType("").Values())},
		{"source type override", cfg.SourceTypeOverride, values(types.SourceType("").Values())},
	}
	for _, e := range enums {
		if e.value != "" && !contains(e.valid, e.value) {
			return "Invalid " + e.field + ": " + e.value + " (valid values: " + strings.Join(e.valid, ", ") + ")"
		}
	}

	bools := []struct {
		field string
		value string
	}{
		{"artifact encryption disabled override", cfg.ArtifactEncryptionDisabledOverride},
		{"override artifact name", cfg.OverrideArtifactName},
		{"privileged mode override", cfg.PrivilegedModeOverride},
		{"insecure SSL override", cfg.InsecureSSLOverride},
		{"report build status override", cfg.ReportBuildStatusOverride},
		{"CloudWatch logs streaming disabled", cfg.CWLStreamingDisabled},
	}
	for _, b := range bools {
		if b.value != "" && !IsBool(b.value) {
			return "Invalid " + b.field + ": " + b.value + " (must be true or false)"
		}
	}

	if cfg.BuildTimeoutOverride != "" {
		timeout, err := strconv.Atoi(strings.TrimSpace(cfg.BuildTimeoutOverride))
		if err != nil || timeout < MinTimeoutMinutes || timeout > MaxTimeoutMinutes {
			return InvalidTimeoutOverrideError
		}
	}

	if depth := cfg.GitCloneDepthOverride; depth != "" && depth != "Full" {
		n, err := strconv.Atoi(strings.TrimSpace(depth))
		if err != nil || n < 0 {
			return InvalidGitCloneDepthError
		}
	}

	if msg := CheckBuildspec(cfg.BuildSpecFile); msg != "" {
		return msg
	}

	return ""
}

// EnvVarsHaveRestrictedPrefix reports whether any variable name starts with
// the reserved prefix. The check applies to every kind.
func EnvVarsHaveRestrictedPrefix(vars []models.EnvironmentVariable) bool {
	for _, v := range vars {
		if strings.HasPrefix(v.Name, ReservedEnvPrefix) {
			return true
		}
	}
	return false
}

// IsBool reports whether s is "true" or "false", ignoring case.
func IsBool(s string) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, "true") || strings.EqualFold(s, "false")
}

func values[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
