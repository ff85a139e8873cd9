package builder

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	builderrors "github.com/narvanalabs/codebuild-runner/internal/builder/errors"
	"github.com/narvanalabs/codebuild-runner/internal/codebuild"
	"github.com/narvanalabs/codebuild-runner/internal/envvars"
	"github.com/narvanalabs/codebuild-runner/internal/models"
	"github.com/narvanalabs/codebuild-runner/internal/overrides"
	"github.com/narvanalabs/codebuild-runner/internal/report"
	"github.com/narvanalabs/codebuild-runner/internal/source"
	"github.com/narvanalabs/codebuild-runner/internal/validation"
)

// s3SourceType is the project source type required for uploaded source.
const s3SourceType = "S3"

// Prepare validates cfg and parses its environment variables. It makes no
// network calls.
func Prepare(cfg models.BuildConfig) ([]models.EnvironmentVariable, error) {
	if msg := validation.CheckEssentialConfig(cfg); msg != "" {
		return nil, builderrors.Config(msg)
	}
	if msg := validation.CheckStartBuildOverrides(cfg); msg != "" {
		return nil, builderrors.Config(msg)
	}

	plain, err := envvars.Parse(cfg.EnvVariables, models.EnvVarPlaintext)
	if err != nil {
		return nil, builderrors.Parse(builderrors.MsgConfiguredImproperly, err)
	}
	params, err := envvars.Parse(cfg.EnvParameters, models.EnvVarParameterStore)
	if err != nil {
		return nil, builderrors.Parse(builderrors.MsgConfiguredImproperly, err)
	}
	vars := append(plain, params...)

	if validation.EnvVarsHaveRestrictedPrefix(vars) {
		return nil, builderrors.Config(builderrors.MsgEnvVariableNamespace)
	}
	return vars, nil
}

// submit validates the configuration, builds clients, uploads source when
// needed and starts the build. It returns the new build id.
func (o *Orchestrator) submit(ctx context.Context, r *run) (string, error) {
	ctx, span := o.tracer.Start(ctx, "codebuild.submit")
	defer span.End()

	id, err := o.doSubmit(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, builderrors.KindOf(err).String())
		return "", err
	}
	span.SetAttributes(attribute.String("build.id", id))
	return id, nil
}

func (o *Orchestrator) doSubmit(ctx context.Context, r *run) (string, error) {
	cfg := r.cfg

	vars, err := Prepare(cfg)
	if err != nil {
		return "", err
	}

	creds := codebuild.CredentialsFromConfig(cfg)
	o.console.Log(creds.Descriptor())
	clients, err := o.factory.Build(ctx, creds)
	if err != nil {
		var be *builderrors.BuildError
		if errors.As(err, &be) {
			return "", err
		}
		return "", builderrors.New(builderrors.KindAuth, builderrors.MsgAuthorization).WithSecondary(err.Error()).WithCause(err)
	}
	r.clients = clients

	project, err := clients.Builds.DescribeProject(ctx, cfg.ProjectName)
	if err != nil {
		if errors.Is(err, codebuild.ErrProjectNotFound) {
			return "", builderrors.New(builderrors.KindConfig, fmt.Sprintf("Project %s does not exist.", cfg.ProjectName)).WithCause(err)
		}
		return "", err
	}
	r.project = project

	req, err := overrides.Resolve(cfg, vars)
	if err != nil {
		return "", err
	}

	if cfg.IsWorkspaceSource() {
		version, err := o.uploadSource(ctx, r)
		if err != nil {
			return "", err
		}
		req.SourceVersion = version
		o.console.Log(StartMessage(cfg, version))
	} else {
		if err := overrides.ApplyProjectSource(req, cfg); err != nil {
			return "", err
		}
		o.console.Log(StartMessage(cfg, req.SourceVersion))
	}

	id, err := clients.Builds.StartBuild(ctx, req)
	if err != nil {
		return "", err
	}

	r.logger.Info("build started", "build_id", id)
	o.console.Log("Build id: " + id)
	o.console.Log("CodeBuild dashboard: " + report.DashboardURL(cfg.Region, cfg.ProjectName, id))
	return id, nil
}

// uploadSource uploads the workspace to the project's S3 source location and
// returns the object version.
func (o *Orchestrator) uploadSource(ctx context.Context, r *run) (string, error) {
	if r.project.SourceType != s3SourceType {
		return "", builderrors.New(builderrors.KindConfig, builderrors.MsgInvalidProject)
	}

	target, err := source.ParseLocation(r.project.SourceLocation)
	if err != nil {
		return "", builderrors.New(builderrors.KindConfig, builderrors.MsgInvalidProject).WithSecondary(err.Error()).WithCause(err)
	}

	versioned, err := r.clients.Objects.BucketVersioned(ctx, target.Bucket)
	if err != nil {
		return "", err
	}
	if !versioned {
		return "", builderrors.New(builderrors.KindConfig, builderrors.MsgNotVersionedBucket)
	}

	uploader := source.NewUploader(r.clients.Objects,
		source.WithConsole(o.console),
		source.WithLogger(r.logger),
		source.WithTempDir(o.tempDir),
	)
	out, err := uploader.Upload(ctx, source.UploadInput{
		Workspace:    r.cfg.Workspace,
		LocalPath:    r.cfg.LocalSourcePath,
		Subdir:       r.cfg.WorkspaceSubdir,
		SSEAlgorithm: r.cfg.SSEAlgorithm,
		Target:       target,
	})
	if err != nil {
		var be *builderrors.BuildError
		if errors.As(err, &be) {
			return "", err
		}
		return "", builderrors.Wrap(builderrors.KindFatal, err)
	}
	if out.VersionID == "" {
		return "", builderrors.New(builderrors.KindConfig, builderrors.MsgNotVersionedBucket)
	}

	o.console.Log("S3 object version id for uploaded source is " + out.VersionID)
	return out.VersionID, nil
}
