package codebuild

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"

	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// optional returns nil for the empty string.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

// value dereferences p, treating nil as empty.
func value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// toStartBuildInput maps a start request onto the SDK input. Empty fields
// and absent groups are omitted.
func toStartBuildInput(req *models.StartRequest) *codebuild.StartBuildInput {
	in := &codebuild.StartBuildInput{
		ProjectName:               aws.String(req.ProjectName),
		BuildspecOverride:         optional(req.BuildspecOverride),
		ImageOverride:             optional(req.Image),
		CertificateOverride:       optional(req.Certificate),
		ServiceRoleOverride:       optional(req.ServiceRole),
		SourceLocationOverride:    optional(req.SourceLocation),
		SourceVersion:             optional(req.SourceVersion),
		EnvironmentTypeOverride:   types.EnvironmentType(req.EnvironmentType),
		ComputeTypeOverride:       types.ComputeType(req.ComputeType),
		SourceTypeOverride:        types.SourceType(req.SourceType),
		InsecureSslOverride:       req.InsecureSsl,
		PrivilegedModeOverride:    req.PrivilegedMode,
		GitCloneDepthOverride:     req.GitCloneDepth,
		ReportBuildStatusOverride: req.ReportBuildStatus,
	}

	if req.TimeoutInMinutes > 0 {
		in.TimeoutInMinutesOverride = aws.Int32(req.TimeoutInMinutes)
	}

	for _, v := range req.EnvironmentVariables {
		in.EnvironmentVariablesOverride = append(in.EnvironmentVariablesOverride, types.EnvironmentVariable{
			Name:  aws.String(v.Name),
			Value: aws.String(v.Value),
			Type:  types.EnvironmentVariableType(v.Kind),
		})
	}

	if req.Artifacts != nil {
		a := toProjectArtifacts(*req.Artifacts)
		in.ArtifactsOverride = &a
	}
	if req.Cache != nil {
		in.CacheOverride = &types.ProjectCache{
			Type:     types.CacheType(req.Cache.Type),
			Location: optional(req.Cache.Location),
		}
	}
	if req.LogsConfig != nil {
		in.LogsConfigOverride = toLogsConfig(req.LogsConfig)
	}
	if req.SourceAuth != nil {
		in.SourceAuthOverride = &types.SourceAuth{
			Type:     types.SourceAuthType(req.SourceAuth.Type),
			Resource: optional(req.SourceAuth.Resource),
		}
	}

	for _, s := range req.SecondarySources {
		in.SecondarySourcesOverride = append(in.SecondarySourcesOverride, toProjectSource(s))
	}
	for _, v := range req.SecondarySourceVersions {
		in.SecondarySourcesVersionOverride = append(in.SecondarySourcesVersionOverride, types.ProjectSourceVersion{
			SourceIdentifier: aws.String(v.SourceIdentifier),
			SourceVersion:    aws.String(v.SourceVersion),
		})
	}
	for _, a := range req.SecondaryArtifacts {
		in.SecondaryArtifactsOverride = append(in.SecondaryArtifactsOverride, toProjectArtifacts(a))
	}

	return in
}

func toProjectArtifacts(a models.Artifacts) types.ProjectArtifacts {
	return types.ProjectArtifacts{
		Type:                 types.ArtifactsType(a.Type),
		Location:             optional(a.Location),
		Name:                 optional(a.Name),
		NamespaceType:        types.ArtifactNamespace(a.NamespaceType),
		Packaging:            types.ArtifactPackaging(a.Packaging),
		Path:                 optional(a.Path),
		EncryptionDisabled:   a.EncryptionDisabled,
		OverrideArtifactName: a.OverrideArtifactName,
		ArtifactIdentifier:   optional(a.ArtifactIdentifier),
	}
}

func toLogsConfig(l *models.LogsConfigOverride) *types.LogsConfig {
	out := &types.LogsConfig{}
	if cw := l.CloudWatchLogs; cw != nil {
		out.CloudWatchLogs = &types.CloudWatchLogsConfig{
			Status:     types.LogsConfigStatusType(cw.Status),
			GroupName:  optional(cw.GroupName),
			StreamName: optional(cw.StreamName),
		}
	}
	if s3 := l.S3Logs; s3 != nil {
		out.S3Logs = &types.S3LogsConfig{
			Status:   types.LogsConfigStatusType(s3.Status),
			Location: optional(s3.Location),
		}
	}
	return out
}

func toProjectSource(s models.ProjectSource) types.ProjectSource {
	out := types.ProjectSource{
		Type:              types.SourceType(s.Type),
		Location:          optional(s.Location),
		GitCloneDepth:     s.GitCloneDepth,
		Buildspec:         optional(s.Buildspec),
		InsecureSsl:       s.InsecureSsl,
		ReportBuildStatus: s.ReportBuildStatus,
		SourceIdentifier:  optional(s.SourceIdentifier),
	}
	if s.Auth != nil {
		out.Auth = &types.SourceAuth{
			Type:     types.SourceAuthType(s.Auth.Type),
			Resource: optional(s.Auth.Resource),
		}
	}
	return out
}

// toSnapshot converts a build record into a snapshot.
func toSnapshot(b types.Build) models.BuildSnapshot {
	snap := models.BuildSnapshot{
		ID:            value(b.Id),
		ARN:           value(b.Arn),
		Status:        models.BuildStatus(b.BuildStatus),
		CurrentPhase:  value(b.CurrentPhase),
		StartTime:     b.StartTime,
		SourceVersion: b.SourceVersion,
	}

	if b.Source != nil {
		snap.Source = &models.SourceDescriptor{
			Type:              string(b.Source.Type),
			Location:          value(b.Source.Location),
			GitCloneDepth:     b.Source.GitCloneDepth,
			ReportBuildStatus: b.Source.ReportBuildStatus,
		}
	}

	for _, p := range b.Phases {
		phase := models.BuildPhase{
			Type:            string(p.PhaseType),
			Status:          string(p.PhaseStatus),
			StartTime:       p.StartTime,
			EndTime:         p.EndTime,
			DurationSeconds: p.DurationInSeconds,
		}
		for _, c := range p.Contexts {
			phase.Contexts = append(phase.Contexts, models.PhaseContext{
				StatusCode: value(c.StatusCode),
				Message:    value(c.Message),
			})
		}
		snap.Phases = append(snap.Phases, phase)
	}

	if b.Artifacts != nil {
		snap.ArtifactLocation = b.Artifacts.Location
	}

	if b.Logs != nil {
		snap.Logs = &models.LogsLocation{
			GroupName:  value(b.Logs.GroupName),
			StreamName: value(b.Logs.StreamName),
			DeepLink:   value(b.Logs.DeepLink),
			S3DeepLink: value(b.Logs.S3DeepLink),
		}
	}

	return snap
}

// toProjectInfo extracts the artifact and source settings of a project.
func toProjectInfo(p types.Project) *models.ProjectInfo {
	info := &models.ProjectInfo{}
	if p.Artifacts != nil {
		info.ArtifactType = string(p.Artifacts.Type)
		info.ArtifactLocation = value(p.Artifacts.Location)
	}
	if p.Source != nil {
		info.SourceType = string(p.Source.Type)
		info.SourceLocation = value(p.Source.Location)
	}
	return info
}
