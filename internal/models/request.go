package models

// EnvVarKind tags an environment variable as a literal or a parameter store reference.
type EnvVarKind string

const (
	EnvVarPlaintext      EnvVarKind = "PLAINTEXT"
	EnvVarParameterStore EnvVarKind = "PARAMETER_STORE"
)

// EnvironmentVariable is a single build environment variable.
type EnvironmentVariable struct {
	Name  string     `json:"name"`
	Value string     `json:"value"`
	Kind  EnvVarKind `json:"type"`
}

// Artifacts is an artifacts override. The JSON form matches the remote
// service's field names so secondary artifacts can be supplied verbatim.
type Artifacts struct {
	Type                 string `json:"type,omitempty"`
	Location             string `json:"location,omitempty"`
	Name                 string `json:"name,omitempty"`
	NamespaceType        string `json:"namespaceType,omitempty"`
	Packaging            string `json:"packaging,omitempty"`
	Path                 string `json:"path,omitempty"`
	EncryptionDisabled   *bool  `json:"encryptionDisabled,omitempty"`
	OverrideArtifactName *bool  `json:"overrideArtifactName,omitempty"`
	ArtifactIdentifier   string `json:"artifactIdentifier,omitempty"`
}

// CacheOverride overrides the project cache.
type CacheOverride struct {
	Type     string `json:"type,omitempty"`
	Location string `json:"location,omitempty"`
}

// CloudWatchLogsOverride overrides the CloudWatch logs configuration.
type CloudWatchLogsOverride struct {
	Status     string `json:"status,omitempty"`
	GroupName  string `json:"groupName,omitempty"`
	StreamName string `json:"streamName,omitempty"`
}

// S3LogsOverride overrides the S3 logs configuration.
type S3LogsOverride struct {
	Status   string `json:"status,omitempty"`
	Location string `json:"location,omitempty"`
}

// LogsConfigOverride holds the two independently optional logs sub-groups.
type LogsConfigOverride struct {
	CloudWatchLogs *CloudWatchLogsOverride `json:"cloudWatchLogs,omitempty"`
	S3Logs         *S3LogsOverride         `json:"s3Logs,omitempty"`
}

// SourceAuth is the source authorization override.
type SourceAuth struct {
	Type     string `json:"type"`
	Resource string `json:"resource,omitempty"`
}

// ProjectSource is a secondary source override.
type ProjectSource struct {
	Type              string      `json:"type,omitempty"`
	Location          string      `json:"location,omitempty"`
	GitCloneDepth     *int32      `json:"gitCloneDepth,omitempty"`
	Buildspec         string      `json:"buildspec,omitempty"`
	InsecureSsl       *bool       `json:"insecureSsl,omitempty"`
	ReportBuildStatus *bool       `json:"reportBuildStatus,omitempty"`
	SourceIdentifier  string      `json:"sourceIdentifier,omitempty"`
	Auth              *SourceAuth `json:"auth,omitempty"`
}

// ProjectSourceVersion pins a secondary source to a version.
type ProjectSourceVersion struct {
	SourceIdentifier string `json:"sourceIdentifier"`
	SourceVersion    string `json:"sourceVersion"`
}

// StartRequest is the fully resolved start-build payload. It is built once
// per invocation and not mutated after submission. Nil groups are omitted.
type StartRequest struct {
	ProjectName          string
	EnvironmentVariables []EnvironmentVariable
	BuildspecOverride    string
	// TimeoutInMinutes is zero when the project default applies.
	TimeoutInMinutes int32

	Artifacts  *Artifacts
	Cache      *CacheOverride
	LogsConfig *LogsConfigOverride

	EnvironmentType string
	Image           string
	ComputeType     string
	Certificate     string
	ServiceRole     string
	InsecureSsl     *bool
	PrivilegedMode  *bool

	SecondarySources        []ProjectSource
	SecondarySourceVersions []ProjectSourceVersion
	SecondaryArtifacts      []Artifacts

	SourceType     string
	SourceLocation string
	SourceAuth     *SourceAuth
	SourceVersion  string
	// GitCloneDepth is nil for uploaded sources; zero means a full clone.
	GitCloneDepth     *int32
	ReportBuildStatus *bool
}

// ProjectInfo is the subset of the remote project used to drive submission.
type ProjectInfo struct {
	ArtifactLocation string
	ArtifactType     string
	SourceLocation   string
	SourceType       string
}
