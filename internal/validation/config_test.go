package validation

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/narvanalabs/codebuild-runner/internal/models"
)

func validConfig() models.BuildConfig {
	return models.BuildConfig{
		ProjectName:       "my-project",
		SourceControlType: models.SourceControlProject,
		Region:            "us-west-2",
	}
}

func TestCheckEssentialConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*models.BuildConfig)
		want   string
	}{
		{"valid", func(c *models.BuildConfig) {}, ""},
		{"missing project", func(c *models.BuildConfig) { c.ProjectName = "" }, ProjectRequiredError},
		{"blank project", func(c *models.BuildConfig) { c.ProjectName = "   " }, ProjectRequiredError},
		{"missing source control type", func(c *models.BuildConfig) { c.SourceControlType = "" }, SourceControlTypeRequiredError},
		{"unknown source control type", func(c *models.BuildConfig) { c.SourceControlType = "svn" }, SourceControlTypeRequiredError},
		{"workspace source", func(c *models.BuildConfig) { c.SourceControlType = models.SourceControlWorkspace }, ""},
		{"missing region", func(c *models.BuildConfig) { c.Region = "" }, RegionRequiredError},
		{"bad proxy port", func(c *models.BuildConfig) { c.ProxyPort = "http" }, ProxyPortError},
		{"proxy port out of range", func(c *models.BuildConfig) { c.ProxyPort = "70000" }, ProxyPortError},
		{"proxy port", func(c *models.BuildConfig) { c.ProxyPort = "3128" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			if got := CheckEssentialConfig(cfg); got != tt.want {
				t.Errorf("CheckEssentialConfig() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckEssentialConfigEmpty(t *testing.T) {
	if got := CheckEssentialConfig(models.BuildConfig{}); got == "" {
		t.Error("CheckEssentialConfig(empty) = \"\", want an error message")
	}
}

func TestCheckStartBuildOverrides(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*models.BuildConfig)
		wantValid bool
		contains  string
	}{
		{"no overrides", func(c *models.BuildConfig) {}, true, ""},
		{"valid artifact type", func(c *models.BuildConfig) { c.ArtifactTypeOverride = "S3" }, true, ""},
		{"invalid artifact type", func(c *models.BuildConfig) { c.ArtifactTypeOverride = "FTP" }, false, "artifact type"},
		{"valid compute type", func(c *models.BuildConfig) { c.ComputeTypeOverride = "BUILD_GENERAL1_SMALL" }, true, ""},
		{"invalid compute type", func(c *models.BuildConfig) { c.ComputeTypeOverride = "HUGE" }, false, "compute type"},
		{"invalid cache type", func(c *models.BuildConfig) { c.CacheTypeOverride = "REMOTE" }, false, "cache type"},
		{"valid logs status", func(c *models.BuildConfig) { c.CloudWatchLogsStatusOverride = "ENABLED" }, true, ""},
		{"invalid s3 logs status", func(c *models.BuildConfig) { c.S3LogsStatusOverride = "ON" }, false, "S3 logs status"},
		{"valid source type", func(c *models.BuildConfig) { c.SourceTypeOverride = "GITHUB" }, true, ""},
		{"invalid source type", func(c *models.BuildConfig) { c.SourceTypeOverride = "SVN" }, false, "source type"},
		{"bool mixed case", func(c *models.BuildConfig) { c.PrivilegedModeOverride = "True" }, true, ""},
		{"bool invalid", func(c *models.BuildConfig) { c.InsecureSSLOverride = "yes" }, false, "insecure SSL"},
		{"timeout in range", func(c *models.BuildConfig) { c.BuildTimeoutOverride = "60" }, true, ""},
		{"timeout too small", func(c *models.BuildConfig) { c.BuildTimeoutOverride = "4" }, false, "timeout"},
		{"timeout too large", func(c *models.BuildConfig) { c.BuildTimeoutOverride = "481" }, false, "timeout"},
		{"timeout not numeric", func(c *models.BuildConfig) { c.BuildTimeoutOverride = "ten" }, false, "timeout"},
		{"clone depth full", func(c *models.BuildConfig) { c.GitCloneDepthOverride = "Full" }, true, ""},
		{"clone depth number", func(c *models.BuildConfig) { c.GitCloneDepthOverride = "1" }, true, ""},
		{"clone depth negative", func(c *models.BuildConfig) { c.GitCloneDepthOverride = "-1" }, false, "clone depth"},
		{"clone depth word", func(c *models.BuildConfig) { c.GitCloneDepthOverride = "shallow" }, false, "clone depth"},
		{"buildspec path", func(c *models.BuildConfig) { c.BuildSpecFile = "ci/buildspec.yml" }, true, ""},
		{"inline buildspec", func(c *models.BuildConfig) {
			c.BuildSpecFile = "version: 0.2\nphases:\n  build:\n    commands:\n      - make\n"
		}, true, ""},
		{"inline buildspec without version", func(c *models.BuildConfig) {
			c.BuildSpecFile = "phases:\n  build:\n    commands:\n      - make\n"
		}, false, "version"},
		{"inline buildspec invalid yaml", func(c *models.BuildConfig) {
			c.BuildSpecFile = "version: 0.2\nphases: [\n"
		}, false, "YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			got := CheckStartBuildOverrides(cfg)
			if tt.wantValid && got != "" {
				t.Fatalf("CheckStartBuildOverrides() = %q, want valid", got)
			}
			if !tt.wantValid {
				if got == "" {
					t.Fatal("CheckStartBuildOverrides() = \"\", want an error message")
				}
				if !strings.Contains(got, tt.contains) {
					t.Errorf("CheckStartBuildOverrides() = %q, want it to mention %q", got, tt.contains)
				}
			}
		})
	}
}

func TestEnvVarsHaveRestrictedPrefix(t *testing.T) {
	tests := []struct {
		name string
		vars []models.EnvironmentVariable
		want bool
	}{
		{"none", nil, false},
		{"plain", []models.EnvironmentVariable{{Name: "FOO", Value: "bar", Kind: models.EnvVarPlaintext}}, false},
		{"reserved plaintext", []models.EnvironmentVariable{{Name: "CODEBUILD_X", Value: "1", Kind: models.EnvVarPlaintext}}, true},
		{"reserved parameter", []models.EnvironmentVariable{
			{Name: "FOO", Value: "bar", Kind: models.EnvVarPlaintext},
			{Name: "CODEBUILD_SECRET", Value: "/path", Kind: models.EnvVarParameterStore},
		}, true},
		{"lowercase is not reserved", []models.EnvironmentVariable{{Name: "codebuild_x", Value: "1"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnvVarsHaveRestrictedPrefix(tt.vars); got != tt.want {
				t.Errorf("EnvVarsHaveRestrictedPrefix() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckPollingBounds(t *testing.T) {
	tests := []struct {
		min, max, jitter int
		want             string
	}{
		{3, 60, 5, ""},
		{0, 60, 5, "Not a positive integer"},
		{3, 0, 5, "Not a positive integer"},
		{3, 60, 0, "Not a positive integer"},
		{3, 28801, 5, "Cannot be greater than 28800 (eight hours)"},
		{30, 10, 5, "Must be greater than minimum interval"},
		{10, 10, 1, ""},
	}

	for _, tt := range tests {
		if got := CheckPollingBounds(tt.min, tt.max, tt.jitter); got != tt.want {
			t.Errorf("CheckPollingBounds(%d, %d, %d) = %q, want %q", tt.min, tt.max, tt.jitter, got, tt.want)
		}
	}
}

// Any configuration without a project name is rejected by the essential pass.
func TestMissingProjectAlwaysRejected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("config without project name is invalid", prop.ForAll(
		func(sourceControl, region string) bool {
			cfg := models.BuildConfig{SourceControlType: sourceControl, Region: region}
			return CheckEssentialConfig(cfg) == ProjectRequiredError
		},
		gen.OneConstOf(models.SourceControlWorkspace, models.SourceControlProject, ""),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
