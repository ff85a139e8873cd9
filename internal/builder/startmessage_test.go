package builder

import (
	"strings"
	"testing"

	"github.com/narvanalabs/codebuild-runner/internal/models"
)

func TestStartMessageProjectSource(t *testing.T) {
	cfg := projectConfig()
	cfg.SourceTypeOverride = "GITHUB"
	cfg.GitCloneDepthOverride = "1"
	cfg.ImageOverride = "aws/codebuild/standard:7.0"
	cfg.BuildSpecFile = "version: 0.2"

	got := StartMessage(cfg, "main")

	want := "Starting build with \n\t> project name: proj" +
		"\n\t> source type: GITHUB" +
		"\n\t> git clone depth: 1 (git clone depth is omitted when source provider is Amazon S3)" +
		"\n\t> source version: main" +
		"\n\t> image: aws/codebuild/standard:7.0" +
		"\n\t> build spec: \nversion: 0.2"
	if got != want {
		t.Errorf("StartMessage() =\n%q\nwant\n%q", got, want)
	}
}

func TestStartMessageWorkspaceOmitsSourceOverrides(t *testing.T) {
	cfg := projectConfig()
	cfg.SourceControlType = models.SourceControlWorkspace
	cfg.SourceTypeOverride = "GITHUB"

	got := StartMessage(cfg, "v1")

	if strings.Contains(got, "source type") {
		t.Errorf("StartMessage() lists source overrides for uploaded source: %q", got)
	}
	if !strings.HasSuffix(got, "\n\t> source version: v1") {
		t.Errorf("StartMessage() = %q", got)
	}
}
