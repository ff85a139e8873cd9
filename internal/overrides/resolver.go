// Package overrides translates the flat override fields of a BuildConfig
// into the structured start-build payload.
package overrides

import (
	"fmt"
	"strconv"
	"strings"

	builderrors "github.com/narvanalabs/codebuild-runner/internal/builder/errors"
	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// Source types that authenticate through OAuth.
var oauthSourceTypes = map[string]bool{
	"GITHUB":    true,
	"BITBUCKET": true,
}

// Resolve builds the start request for cfg. envVars must already be parsed
// and checked. Source version, clone depth and source overrides are applied
// separately by ApplyProjectSource or by the caller after uploading source.
func Resolve(cfg models.BuildConfig, envVars []models.EnvironmentVariable) (*models.StartRequest, error) {
	timeout, err := ParseTimeout(cfg.BuildTimeoutOverride)
	if err != nil {
		return nil, err
	}

	req := &models.StartRequest{
		ProjectName:          cfg.ProjectName,
		EnvironmentVariables: envVars,
		BuildspecOverride:    cfg.BuildSpecFile,
		TimeoutInMinutes:     timeout,
		Artifacts:            Artifacts(cfg),
		Cache:                Cache(cfg),
		LogsConfig:           LogsConfig(cfg),
		EnvironmentType:      cfg.EnvironmentTypeOverride,
		Image:                cfg.ImageOverride,
		ComputeType:          cfg.ComputeTypeOverride,
		Certificate:          cfg.CertificateOverride,
		ServiceRole:          cfg.ServiceRoleOverride,
		InsecureSsl:          OptionalBool(cfg.InsecureSSLOverride),
		PrivilegedMode:       OptionalBool(cfg.PrivilegedModeOverride),
	}

	if req.SecondarySources, err = ParseList[models.ProjectSource](cfg.SecondarySourcesOverride); err != nil {
		return nil, builderrors.Parse(builderrors.MsgInvalidSecondary, err)
	}
	if req.SecondarySourceVersions, err = ParseList[models.ProjectSourceVersion](cfg.SecondarySourcesVersionOverride); err != nil {
		return nil, builderrors.Parse(builderrors.MsgInvalidSecondary, err)
	}
	if req.SecondaryArtifacts, err = ParseList[models.Artifacts](cfg.SecondaryArtifactsOverride); err != nil {
		return nil, builderrors.Parse(builderrors.MsgInvalidSecondary, err)
	}

	return req, nil
}

// ApplyProjectSource sets the source overrides used when the build runs from
// the project's own source rather than an uploaded workspace.
func ApplyProjectSource(req *models.StartRequest, cfg models.BuildConfig) error {
	depth, err := ParseGitCloneDepth(cfg.GitCloneDepthOverride)
	if err != nil {
		return err
	}

	if cfg.SourceTypeOverride != "" {
		req.SourceType = cfg.SourceTypeOverride
		req.SourceAuth = SourceAuth(cfg.SourceTypeOverride)
	}
	req.SourceLocation = cfg.SourceLocationOverride
	req.SourceVersion = cfg.SourceVersion
	req.GitCloneDepth = &depth
	req.ReportBuildStatus = OptionalBool(cfg.ReportBuildStatusOverride)
	return nil
}

// Artifacts returns the artifacts override, or nil when no artifact field is set.
func Artifacts(cfg models.BuildConfig) *models.Artifacts {
	a := &models.Artifacts{
		Type:                 cfg.ArtifactTypeOverride,
		Location:             cfg.ArtifactLocationOverride,
		Name:                 cfg.ArtifactNameOverride,
		NamespaceType:        cfg.ArtifactNamespaceOverride,
		Packaging:            cfg.ArtifactPackagingOverride,
		Path:                 cfg.ArtifactPathOverride,
		EncryptionDisabled:   OptionalBool(cfg.ArtifactEncryptionDisabledOverride),
		OverrideArtifactName: OptionalBool(cfg.OverrideArtifactName),
	}
	if *a == (models.Artifacts{}) {
		return nil
	}
	return a
}

// Cache returns the cache override, or nil when no cache field is set.
func Cache(cfg models.BuildConfig) *models.CacheOverride {
	c := &models.CacheOverride{
		Type:     cfg.CacheTypeOverride,
		Location: cfg.CacheLocationOverride,
	}
	if *c == (models.CacheOverride{}) {
		return nil
	}
	return c
}

// LogsConfig returns the logs override, or nil when neither the CloudWatch
// nor the S3 sub-group has a field set. Each sub-group is independent.
func LogsConfig(cfg models.BuildConfig) *models.LogsConfigOverride {
	var logs models.LogsConfigOverride

	cw := models.CloudWatchLogsOverride{
		Status:     cfg.CloudWatchLogsStatusOverride,
		GroupName:  cfg.CloudWatchLogsGroupNameOverride,
		StreamName: cfg.CloudWatchLogsStreamNameOverride,
	}
	if cw != (models.CloudWatchLogsOverride{}) {
		logs.CloudWatchLogs = &cw
	}

	s3 := models.S3LogsOverride{
		Status:   cfg.S3LogsStatusOverride,
		Location: cfg.S3LogsLocationOverride,
	}
	if s3 != (models.S3LogsOverride{}) {
		logs.S3Logs = &s3
	}

	if logs.CloudWatchLogs == nil && logs.S3Logs == nil {
		return nil
	}
	return &logs
}

// SourceAuth returns the OAuth source auth for source types that need it.
func SourceAuth(sourceType string) *models.SourceAuth {
	if !oauthSourceTypes[sourceType] {
		return nil
	}
	return &models.SourceAuth{Type: "OAUTH"}
}

// OptionalBool parses a permissive boolean. Empty means unset. Anything
// other than "true" (any case) is false.
func OptionalBool(s string) *bool {
	if s == "" {
		return nil
	}
	b := strings.EqualFold(strings.TrimSpace(s), "true")
	return &b
}

// ParseTimeout parses the build timeout override in minutes. Empty means the
// project default (zero).
func ParseTimeout(s string) (int32, error) {
	return parseInt32("build timeout override", s)
}

// ParseGitCloneDepth parses the clone depth override. Empty and "Full" mean a
// full clone (zero).
func ParseGitCloneDepth(s string) (int32, error) {
	if s == "Full" {
		return 0, nil
	}
	return parseInt32("git clone depth override", s)
}

func parseInt32(field, s string) (int32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, builderrors.Parse(builderrors.MsgConfiguredImproperly, fmt.Errorf("invalid %s %q", field, s))
	}
	return int32(n), nil
}
