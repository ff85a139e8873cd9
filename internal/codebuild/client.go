// Package codebuild is the boundary to the remote build, object store and log
// services. Errors leaving this package are classified with the kinds in
// internal/builder/errors so callers never inspect message text.
package codebuild

import (
	"context"
	"errors"
	"io"

	"github.com/narvanalabs/codebuild-runner/internal/models"
)

var (
	// ErrProjectNotFound is returned by DescribeProject for an unknown project.
	ErrProjectNotFound = errors.New("project not found")

	// ErrNoBuildID is returned when a start call yields no build id.
	ErrNoBuildID = errors.New("start build returned no build id")
)

// BuildService starts, inspects and stops remote builds.
type BuildService interface {
	// StartBuild submits req and returns the new build id.
	StartBuild(ctx context.Context, req *models.StartRequest) (string, error)
	// FetchBuilds returns every build record for id. A valid id yields
	// exactly one record.
	FetchBuilds(ctx context.Context, id string) ([]models.BuildSnapshot, error)
	// StopBuild requests that the build stop.
	StopBuild(ctx context.Context, id string) error
	// DescribeProject returns the artifact and source settings of a project.
	DescribeProject(ctx context.Context, name string) (*models.ProjectInfo, error)
}

// PutObjectInput describes a source upload.
type PutObjectInput struct {
	Bucket        string
	Key           string
	Body          io.Reader
	ContentLength int64
	ContentMD5    string
	SSEAlgorithm  string
}

// ObjectStore is the object storage used for uploaded source.
type ObjectStore interface {
	// BucketVersioned reports whether versioning is enabled on bucket.
	BucketVersioned(ctx context.Context, bucket string) (bool, error)
	// PutObject uploads an object and returns its version id, which is empty
	// for unversioned buckets.
	PutObject(ctx context.Context, in *PutObjectInput) (string, error)
}

// LogEventsInput selects a page of log events.
type LogEventsInput struct {
	GroupName  string
	StreamName string
	NextToken  string
}

// LogEventsPage is one page of log events.
type LogEventsPage struct {
	Messages  []string
	NextToken string
}

// LogService reads build log streams.
type LogService interface {
	GetLogEvents(ctx context.Context, in *LogEventsInput) (*LogEventsPage, error)
}

// Clients bundles the service clients built for one invocation.
type Clients struct {
	Builds  BuildService
	Objects ObjectStore
	Logs    LogService

	// Descriptor is a human readable summary of the credentials in use.
	// It never contains secrets.
	Descriptor string
}

// Factory builds service clients from credentials.
type Factory interface {
	Build(ctx context.Context, creds Credentials) (*Clients, error)
}
