package codebuild

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"

	"github.com/narvanalabs/codebuild-runner/internal/models"
)

func TestToStartBuildInputOmitsEmpty(t *testing.T) {
	in := toStartBuildInput(&models.StartRequest{ProjectName: "proj"})

	if aws.ToString(in.ProjectName) != "proj" {
		t.Errorf("ProjectName = %v", in.ProjectName)
	}
	if in.TimeoutInMinutesOverride != nil {
		t.Errorf("TimeoutInMinutesOverride = %v, want nil", *in.TimeoutInMinutesOverride)
	}
	if in.ArtifactsOverride != nil || in.CacheOverride != nil || in.LogsConfigOverride != nil || in.SourceAuthOverride != nil {
		t.Error("empty request produced override groups")
	}
	if in.ImageOverride != nil || in.SourceVersion != nil || in.EnvironmentTypeOverride != "" {
		t.Error("empty request produced scalar overrides")
	}
}

func TestToStartBuildInput(t *testing.T) {
	depth := int32(1)
	privileged := true
	req := &models.StartRequest{
		ProjectName: "proj",
		EnvironmentVariables: []models.EnvironmentVariable{
			{Name: "A", Value: "1", Kind: models.EnvVarPlaintext},
			{Name: "B", Value: "/ssm/b", Kind: models.EnvVarParameterStore},
		},
		Artifacts:      &models.Artifacts{Type: "S3", Location: "bucket"},
		Cache:          &models.CacheOverride{Type: "LOCAL"},
		LogsConfig:     &models.LogsConfigOverride{CloudWatchLogs: &models.CloudWatchLogsOverride{Status: "DISABLED"}},
		SourceType:     "GITHUB",
		SourceAuth:     &models.SourceAuth{Type: "OAUTH"},
		SourceVersion:  "main",
		GitCloneDepth:  &depth,
		PrivilegedMode: &privileged,
		ComputeType:    "BUILD_GENERAL1_SMALL",
		SecondarySources: []models.ProjectSource{
			{Type: "S3", Location: "bucket/lib.zip", SourceIdentifier: "lib"},
		},
		SecondarySourceVersions: []models.ProjectSourceVersion{{SourceIdentifier: "lib", SourceVersion: "v2"}},
	}

	in := toStartBuildInput(req)

	if len(in.EnvironmentVariablesOverride) != 2 || in.EnvironmentVariablesOverride[1].Type != types.EnvironmentVariableTypeParameterStore {
		t.Errorf("EnvironmentVariablesOverride = %+v", in.EnvironmentVariablesOverride)
	}
	if in.ArtifactsOverride == nil || in.ArtifactsOverride.Type != types.ArtifactsTypeS3 || aws.ToString(in.ArtifactsOverride.Location) != "bucket" {
		t.Errorf("ArtifactsOverride = %+v", in.ArtifactsOverride)
	}
	if in.CacheOverride == nil || in.CacheOverride.Type != types.CacheTypeLocal || in.CacheOverride.Location != nil {
		t.Errorf("CacheOverride = %+v", in.CacheOverride)
	}
	if in.LogsConfigOverride == nil || in.LogsConfigOverride.S3Logs != nil ||
		in.LogsConfigOverride.CloudWatchLogs.Status != types.LogsConfigStatusTypeDisabled {
		t.Errorf("LogsConfigOverride = %+v", in.LogsConfigOverride)
	}
	if in.SourceTypeOverride != types.SourceTypeGithub || in.SourceAuthOverride.Type != types.SourceAuthTypeOauth {
		t.Errorf("source = %v %+v", in.SourceTypeOverride, in.SourceAuthOverride)
	}
	if aws.ToInt32(in.GitCloneDepthOverride) != 1 || !aws.ToBool(in.PrivilegedModeOverride) {
		t.Errorf("GitCloneDepthOverride = %v PrivilegedModeOverride = %v", in.GitCloneDepthOverride, in.PrivilegedModeOverride)
	}
	if in.ComputeTypeOverride != types.ComputeTypeBuildGeneral1Small {
		t.Errorf("ComputeTypeOverride = %v", in.ComputeTypeOverride)
	}
	if len(in.SecondarySourcesOverride) != 1 || aws.ToString(in.SecondarySourcesOverride[0].SourceIdentifier) != "lib" {
		t.Errorf("SecondarySourcesOverride = %+v", in.SecondarySourcesOverride)
	}
	if len(in.SecondarySourcesVersionOverride) != 1 || aws.ToString(in.SecondarySourcesVersionOverride[0].SourceVersion) != "v2" {
		t.Errorf("SecondarySourcesVersionOverride = %+v", in.SecondarySourcesVersionOverride)
	}
}

func TestToSnapshot(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	b := types.Build{
		Id:            aws.String("proj:1"),
		Arn:           aws.String("arn:aws:codebuild:us-east-1:1:build/proj:1"),
		BuildStatus:   types.StatusTypeFailed,
		CurrentPhase:  aws.String("COMPLETED"),
		StartTime:     &start,
		SourceVersion: aws.String("abc"),
		Source:        &types.ProjectSource{Type: types.SourceTypeGithub, Location: aws.String("https://github.com/o/r"), GitCloneDepth: aws.Int32(1)},
		Phases: []types.BuildPhase{{
			PhaseType:   types.BuildPhaseTypeBuild,
			PhaseStatus: types.StatusTypeFailed,
			Contexts:    []types.PhaseContext{{StatusCode: aws.String("COMMAND_EXECUTION_ERROR"), Message: aws.String("exit 1")}},
		}},
		Artifacts: &types.BuildArtifacts{Location: aws.String("arn:aws:s3:::artifacts/proj")},
		Logs: &types.LogsLocation{
			GroupName:  aws.String("/aws/codebuild/proj"),
			StreamName: aws.String("1"),
			DeepLink:   aws.String("https://console/cw"),
		},
	}

	snap := toSnapshot(b)

	if snap.ID != "proj:1" || snap.Status != models.BuildStatusFailed || !snap.Completed() {
		t.Errorf("snapshot header = %+v", snap)
	}
	if snap.Source == nil || snap.Source.Type != "GITHUB" || *snap.Source.GitCloneDepth != 1 {
		t.Errorf("Source = %+v", snap.Source)
	}
	if len(snap.Phases) != 1 || snap.Phases[0].Contexts[0].Message != "exit 1" {
		t.Errorf("Phases = %+v", snap.Phases)
	}
	if snap.ArtifactLocation == nil || *snap.ArtifactLocation != "arn:aws:s3:::artifacts/proj" {
		t.Errorf("ArtifactLocation = %v", snap.ArtifactLocation)
	}
	if snap.Logs == nil || snap.Logs.S3DeepLink != "" || snap.Logs.DeepLink != "https://console/cw" {
		t.Errorf("Logs = %+v", snap.Logs)
	}
}
