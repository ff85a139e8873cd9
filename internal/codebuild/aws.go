package codebuild

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	builderrors "github.com/narvanalabs/codebuild-runner/internal/builder/errors"
	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// DefaultCallTimeout bounds a single service call. A call that exceeds it is
// reported as transient.
const DefaultCallTimeout = 60 * time.Second

// codeBuildAPI is the subset of the CodeBuild client used here.
type codeBuildAPI interface {
	StartBuild(ctx context.Context, in *codebuild.StartBuildInput, optFns ...func(*codebuild.Options)) (*codebuild.StartBuildOutput, error)
	BatchGetBuilds(ctx context.Context, in *codebuild.BatchGetBuildsInput, optFns ...func(*codebuild.Options)) (*codebuild.BatchGetBuildsOutput, error)
	StopBuild(ctx context.Context, in *codebuild.StopBuildInput, optFns ...func(*codebuild.Options)) (*codebuild.StopBuildOutput, error)
	BatchGetProjects(ctx context.Context, in *codebuild.BatchGetProjectsInput, optFns ...func(*codebuild.Options)) (*codebuild.BatchGetProjectsOutput, error)
}

// BuildClient implements BuildService on the CodeBuild API.
type BuildClient struct {
	api         codeBuildAPI
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewBuildClient wraps a CodeBuild client.
func NewBuildClient(api codeBuildAPI, callTimeout time.Duration, logger *slog.Logger) *BuildClient {
	if logger == nil {
		logger = slog.Default()
	}
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &BuildClient{api: api, callTimeout: callTimeout, logger: logger}
}

// StartBuild submits req and returns the build id.
func (c *BuildClient) StartBuild(ctx context.Context, req *models.StartRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.StartBuild(callCtx, toStartBuildInput(req))
	if err != nil {
		return "", classify(ctx, "starting build", err)
	}
	if out.Build == nil || out.Build.Id == nil {
		return "", builderrors.Wrap(builderrors.KindFatal, ErrNoBuildID)
	}

	c.logger.Debug("build started", "project", req.ProjectName, "build_id", *out.Build.Id)
	return *out.Build.Id, nil
}

// FetchBuilds returns the build records for id.
func (c *BuildClient) FetchBuilds(ctx context.Context, id string) ([]models.BuildSnapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.BatchGetBuilds(callCtx, &codebuild.BatchGetBuildsInput{Ids: []string{id}})
	if err != nil {
		return nil, classify(ctx, "fetching build", err)
	}

	snaps := make([]models.BuildSnapshot, 0, len(out.Builds))
	for _, b := range out.Builds {
		snaps = append(snaps, toSnapshot(b))
	}
	return snaps, nil
}

// StopBuild requests that the build stop.
func (c *BuildClient) StopBuild(ctx context.Context, id string) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if _, err := c.api.StopBuild(callCtx, &codebuild.StopBuildInput{Id: aws.String(id)}); err != nil {
		return classify(ctx, "stopping build", err)
	}
	c.logger.Info("stop requested", "build_id", id)
	return nil
}

// DescribeProject returns the artifact and source settings of name.
func (c *BuildClient) DescribeProject(ctx context.Context, name string) (*models.ProjectInfo, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.BatchGetProjects(callCtx, &codebuild.BatchGetProjectsInput{Names: []string{name}})
	if err != nil {
		return nil, classify(ctx, "describing project", err)
	}
	if len(out.Projects) == 0 {
		return nil, ErrProjectNotFound
	}
	return toProjectInfo(out.Projects[0]), nil
}

// s3API is the subset of the S3 client used here.
type s3API interface {
	GetBucketVersioning(ctx context.Context, in *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ObjectClient implements ObjectStore on S3.
type ObjectClient struct {
	api s3API
}

// NewObjectClient wraps an S3 client.
func NewObjectClient(api s3API) *ObjectClient {
	return &ObjectClient{api: api}
}

// BucketVersioned reports whether versioning is enabled on bucket.
func (c *ObjectClient) BucketVersioned(ctx context.Context, bucket string) (bool, error) {
	out, err := c.api.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: aws.String(bucket)})
	if err != nil {
		return false, classify(ctx, "reading bucket versioning", err)
	}
	return out.Status == s3types.BucketVersioningStatusEnabled, nil
}

// PutObject uploads an object and returns its version id.
func (c *ObjectClient) PutObject(ctx context.Context, in *PutObjectInput) (string, error) {
	put := &s3.PutObjectInput{
		Bucket:        aws.String(in.Bucket),
		Key:           aws.String(in.Key),
		Body:          in.Body,
		ContentLength: aws.Int64(in.ContentLength),
		ContentMD5:    optional(in.ContentMD5),
	}
	if in.SSEAlgorithm != "" {
		put.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}

	out, err := c.api.PutObject(ctx, put)
	if err != nil {
		return "", classify(ctx, "uploading source", err)
	}
	return value(out.VersionId), nil
}

// logsAPI is the subset of the CloudWatch Logs client used here.
type logsAPI interface {
	GetLogEvents(ctx context.Context, in *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

// LogClient implements LogService on CloudWatch Logs.
type LogClient struct {
	api logsAPI
}

// NewLogClient wraps a CloudWatch Logs client.
func NewLogClient(api logsAPI) *LogClient {
	return &LogClient{api: api}
}

// GetLogEvents reads one page of events, oldest first.
func (c *LogClient) GetLogEvents(ctx context.Context, in *LogEventsInput) (*LogEventsPage, error) {
	out, err := c.api.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(in.GroupName),
		LogStreamName: aws.String(in.StreamName),
		StartFromHead: aws.Bool(true),
		NextToken:     optional(in.NextToken),
	})
	if err != nil {
		return nil, classify(ctx, "reading log events", err)
	}

	page := &LogEventsPage{NextToken: value(out.NextForwardToken)}
	for _, e := range out.Events {
		page.Messages = append(page.Messages, value(e.Message))
	}
	return page, nil
}
