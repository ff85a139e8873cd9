package builder

import (
	"strings"

	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// StartMessage renders the summary written before a build is started. Only
// settings that were supplied are listed.
func StartMessage(cfg models.BuildConfig, sourceVersion string) string {
	var b strings.Builder
	b.WriteString("Starting build with \n\t> project name: ")
	b.WriteString(cfg.ProjectName)

	add := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString("\n\t> ")
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
	}

	if !cfg.IsWorkspaceSource() {
		add("source type", cfg.SourceTypeOverride)
		add("source location", cfg.SourceLocationOverride)
		if cfg.GitCloneDepthOverride != "" {
			add("git clone depth", cfg.GitCloneDepthOverride+" (git clone depth is omitted when source provider is Amazon S3)")
		}
		if cfg.ReportBuildStatusOverride != "" {
			add("report build status", cfg.ReportBuildStatusOverride+" (report build status is valid when source provider is GitHub)")
		}
	}

	fields := []struct{ label, value string }{
		{"source version", sourceVersion},
		{"secondary source overrides", cfg.SecondarySourcesOverride},
		{"secondary source version overrides", cfg.SecondarySourcesVersionOverride},
		{"artifact type", cfg.ArtifactTypeOverride},
		{"artifact location", cfg.ArtifactLocationOverride},
		{"artifact name", cfg.ArtifactNameOverride},
		{"overrideArtifactName", cfg.OverrideArtifactName},
		{"artifact namespace", cfg.ArtifactNamespaceOverride},
		{"artifact packaging", cfg.ArtifactPackagingOverride},
		{"artifact path", cfg.ArtifactPathOverride},
		{"artifact encryption disabled", cfg.ArtifactEncryptionDisabledOverride},
		{"secondary artifact overrides", cfg.SecondaryArtifactsOverride},
		{"environment variables", cfg.EnvVariables},
		{"build timeout", cfg.BuildTimeoutOverride},
		{"cache type", cfg.CacheTypeOverride},
		{"cache location", cfg.CacheLocationOverride},
		{"cloudwatch logs status", cfg.CloudWatchLogsStatusOverride},
		{"cloudwatch logs group name", cfg.CloudWatchLogsGroupNameOverride},
		{"cloudwatch logs stream name", cfg.CloudWatchLogsStreamNameOverride},
		{"s3 logs status", cfg.S3LogsStatusOverride},
		{"s3 logs location", cfg.S3LogsLocationOverride},
		{"environment type", cfg.EnvironmentTypeOverride},
		{"image", cfg.ImageOverride},
		{"privileged mode override", cfg.PrivilegedModeOverride},
		{"compute type", cfg.ComputeTypeOverride},
		{"insecure ssl override", cfg.InsecureSSLOverride},
		{"certificate", cfg.CertificateOverride},
		{"service role", cfg.ServiceRoleOverride},
		{"CloudWatch logs streaming disabled", cfg.CWLStreamingDisabled},
		{"exception failure mode status", cfg.ExceptionFailureMode},
	}
	for _, f := range fields {
		add(f.label, f.value)
	}

	if cfg.BuildSpecFile != "" {
		b.WriteString("\n\t> build spec: \n")
		b.WriteString(cfg.BuildSpecFile)
	}
	return b.String()
}
