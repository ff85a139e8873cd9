package models

import (
	"reflect"
)

// Source control types accepted in BuildConfig.SourceControlType.
const (
	// SourceControlWorkspace uploads the local workspace to the project's S3 source.
	SourceControlWorkspace = "workspace"
	// SourceControlProject builds from the project's configured source.
	SourceControlProject = "project"
)

// BuildConfig is the immutable set of user-supplied settings for one
// invocation. Every field is a string and the empty string means unset.
type BuildConfig struct {
	// Credentials and client settings
	CredentialsProfile string `hcl:"credentials_profile,optional" json:"credentials_profile,omitempty"`
	AccessKey          string `hcl:"aws_access_key,optional" json:"aws_access_key,omitempty"`
	SecretKey          string `hcl:"aws_secret_key,optional" json:"-"`
	SessionToken       string `hcl:"aws_session_token,optional" json:"-"`
	IAMRoleARN         string `hcl:"iam_role_arn,optional" json:"iam_role_arn,omitempty"`
	ExternalID         string `hcl:"external_id,optional" json:"external_id,omitempty"`
	ProxyHost          string `hcl:"proxy_host,optional" json:"proxy_host,omitempty"`
	ProxyPort          string `hcl:"proxy_port,optional" json:"proxy_port,omitempty"`
	Region             string `hcl:"region,optional" json:"region,omitempty"`

	// Project and source
	ProjectName       string `hcl:"project_name,optional" json:"project_name,omitempty"`
	SourceControlType string `hcl:"source_control_type,optional" json:"source_control_type,omitempty"`
	Workspace         string `hcl:"workspace,optional" json:"workspace,omitempty"`
	LocalSourcePath   string `hcl:"local_source_path,optional" json:"local_source_path,omitempty"`
	WorkspaceSubdir   string `hcl:"workspace_subdir,optional" json:"workspace_subdir,omitempty"`
	SourceVersion     string `hcl:"source_version,optional" json:"source_version,omitempty"`
	SSEAlgorithm      string `hcl:"sse_algorithm,optional" json:"sse_algorithm,omitempty"`

	// Source overrides
	SourceTypeOverride              string `hcl:"source_type_override,optional" json:"source_type_override,omitempty"`
	SourceLocationOverride          string `hcl:"source_location_override,optional" json:"source_location_override,omitempty"`
	GitCloneDepthOverride           string `hcl:"git_clone_depth_override,optional" json:"git_clone_depth_override,omitempty"`
	ReportBuildStatusOverride       string `hcl:"report_build_status_override,optional" json:"report_build_status_override,omitempty"`
	SecondarySourcesOverride        string `hcl:"secondary_sources_override,optional" json:"secondary_sources_override,omitempty"`
	SecondarySourcesVersionOverride string `hcl:"secondary_sources_version_override,optional" json:"secondary_sources_version_override,omitempty"`

	// Artifact overrides
	ArtifactTypeOverride               string `hcl:"artifact_type_override,optional" json:"artifact_type_override,omitempty"`
	ArtifactLocationOverride           string `hcl:"artifact_location_override,optional" json:"artifact_location_override,omitempty"`
	ArtifactNameOverride               string `hcl:"artifact_name_override,optional" json:"artifact_name_override,omitempty"`
	ArtifactNamespaceOverride          string `hcl:"artifact_namespace_override,optional" json:"artifact_namespace_override,omitempty"`
	ArtifactPackagingOverride          string `hcl:"artifact_packaging_override,optional" json:"artifact_packaging_override,omitempty"`
	ArtifactPathOverride               string `hcl:"artifact_path_override,optional" json:"artifact_path_override,omitempty"`
	ArtifactEncryptionDisabledOverride string `hcl:"artifact_encryption_disabled_override,optional" json:"artifact_encryption_disabled_override,omitempty"`
	OverrideArtifactName               string `hcl:"override_artifact_name,optional" json:"override_artifact_name,omitempty"`
	SecondaryArtifactsOverride         string `hcl:"secondary_artifacts_override,optional" json:"secondary_artifacts_override,omitempty"`

	// Environment overrides
	EnvironmentTypeOverride string `hcl:"environment_type_override,optional" json:"environment_type_override,omitempty"`
	ImageOverride           string `hcl:"image_override,optional" json:"image_override,omitempty"`
	ComputeTypeOverride     string `hcl:"compute_type_override,optional" json:"compute_type_override,omitempty"`
	CertificateOverride     string `hcl:"certificate_override,optional" json:"certificate_override,omitempty"`
	ServiceRoleOverride     string `hcl:"service_role_override,optional" json:"service_role_override,omitempty"`
	PrivilegedModeOverride  string `hcl:"privileged_mode_override,optional" json:"privileged_mode_override,omitempty"`
	InsecureSSLOverride     string `hcl:"insecure_ssl_override,optional" json:"insecure_ssl_override,omitempty"`

	// Cache overrides
	CacheTypeOverride     string `hcl:"cache_type_override,optional" json:"cache_type_override,omitempty"`
	CacheLocationOverride string `hcl:"cache_location_override,optional" json:"cache_location_override,omitempty"`

	// Logs overrides
	CloudWatchLogsStatusOverride     string `hcl:"cloudwatch_logs_status_override,optional" json:"cloudwatch_logs_status_override,omitempty"`
	CloudWatchLogsGroupNameOverride  string `hcl:"cloudwatch_logs_group_name_override,optional" json:"cloudwatch_logs_group_name_override,omitempty"`
	CloudWatchLogsStreamNameOverride string `hcl:"cloudwatch_logs_stream_name_override,optional" json:"cloudwatch_logs_stream_name_override,omitempty"`
	S3LogsStatusOverride             string `hcl:"s3_logs_status_override,optional" json:"s3_logs_status_override,omitempty"`
	S3LogsLocationOverride           string `hcl:"s3_logs_location_override,optional" json:"s3_logs_location_override,omitempty"`

	// Build inputs
	EnvVariables         string `hcl:"env_variables,optional" json:"env_variables,omitempty"`
	EnvParameters        string `hcl:"env_parameters,optional" json:"env_parameters,omitempty"`
	BuildSpecFile        string `hcl:"buildspec_file,optional" json:"buildspec_file,omitempty"`
	BuildTimeoutOverride string `hcl:"build_timeout_override,optional" json:"build_timeout_override,omitempty"`

	// Runner behavior
	CWLStreamingDisabled string `hcl:"cwl_streaming_disabled,optional" json:"cwl_streaming_disabled,omitempty"`
	ExceptionFailureMode string `hcl:"exception_failure_mode,optional" json:"exception_failure_mode,omitempty"`
}

// Expand returns a copy of the config with every field passed through
// mapping. It is used for $VAR parameter expansion.
func (c BuildConfig) Expand(mapping func(string) string) BuildConfig {
	out := c
	v := reflect.ValueOf(&out).Elem()
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if f.Kind() == reflect.String && f.CanSet() {
			f.SetString(mapping(f.String()))
		}
	}
	return out
}

// Merge returns a copy of c where every non-empty field of other replaces
// the corresponding field of c.
func (c BuildConfig) Merge(other BuildConfig) BuildConfig {
	out := c
	dst := reflect.ValueOf(&out).Elem()
	src := reflect.ValueOf(other)
	for i := 0; i < dst.NumField(); i++ {
		if s := src.Field(i); s.Kind() == reflect.String && s.String() != "" {
			dst.Field(i).SetString(s.String())
		}
	}
	return out
}

// IsWorkspaceSource reports whether the workspace must be uploaded as source.
func (c BuildConfig) IsWorkspaceSource() bool {
	return c.SourceControlType == SourceControlWorkspace
}
