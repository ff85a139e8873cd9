// Package errors provides the error taxonomy for build invocations.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an invocation error and decides how the poll loop reacts.
type Kind int

const (
	// KindFatal is any failure without a more specific classification.
	KindFatal Kind = iota
	// KindConfig is a validation failure. Never retried.
	KindConfig
	// KindParse is a malformed env-var or override string. Never retried.
	KindParse
	// KindAuth is a client construction failure. Never retried.
	KindAuth
	// KindTransientNetwork is an HTTP-timeout class failure, retried with backoff.
	KindTransientNetwork
	// KindRemoteJob is a build that reached a non-success terminal state.
	KindRemoteJob
	// KindCancel is an external stop request.
	KindCancel
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindParse:
		return "parse"
	case KindAuth:
		return "auth"
	case KindTransientNetwork:
		return "transient_network"
	case KindRemoteJob:
		return "remote_job"
	case KindCancel:
		return "cancel"
	default:
		return "fatal"
	}
}

// Operator-visible messages.
const (
	MsgAuthorization          = "Authorization error"
	MsgConfiguredImproperly   = "CodeBuild configured improperly in project settings"
	MsgInvalidProject         = "Please select a project with S3 source type"
	MsgNotVersionedBucket     = "A versioned S3 bucket is required.\n"
	MsgInvalidSecondary       = "Invalid secondary source/artifacts"
	MsgMultipleBuilds         = "Multiple builds mapped to this build id."
	MsgEnvVariableSyntax      = "CodeBuild environment variable keys and values cannot be empty and the string must be of the form [{key, value}, {key2, value2}]"
	MsgEnvVariableNamespace   = "CodeBuild environment variable keys cannot start with CODEBUILD_"
	MsgUnableToExecuteRequest = "Unable to execute HTTP request"
)

// BuildError is an error with a classification and an optional secondary
// detail line for the operator log.
type BuildError struct {
	Err       error
	Kind      Kind
	Message   string
	Secondary string
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// Primary returns the headline message for the outcome.
func (e *BuildError) Primary() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

// New creates a BuildError with a headline message.
func New(kind Kind, message string) *BuildError {
	return &BuildError{Kind: kind, Message: message}
}

// Wrap classifies err. The error message becomes the headline.
func Wrap(kind Kind, err error) *BuildError {
	return &BuildError{Kind: kind, Err: err}
}

// WithSecondary sets the secondary detail.
func (e *BuildError) WithSecondary(secondary string) *BuildError {
	e.Secondary = secondary
	return e
}

// WithCause sets the underlying error.
func (e *BuildError) WithCause(err error) *BuildError {
	e.Err = err
	return e
}

// Config returns a config error whose detail is the validator message.
func Config(detail string) *BuildError {
	return New(KindConfig, MsgConfiguredImproperly).WithSecondary(detail)
}

// Parse returns a parse error under the given headline.
func Parse(headline string, err error) *BuildError {
	return &BuildError{Kind: KindParse, Message: headline, Secondary: err.Error(), Err: err}
}

// Transient marks err as retryable.
func Transient(err error) *BuildError {
	return Wrap(KindTransientNetwork, err)
}

// KindOf returns the kind of the first BuildError in err's chain, or
// KindFatal when there is none.
func KindOf(err error) Kind {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindFatal
}

// IsTransient reports whether err should be retried by the poll loop.
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransientNetwork
}

// Describe splits err into primary and secondary operator messages.
func Describe(err error) (primary, secondary string) {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Primary(), be.Secondary
	}
	return err.Error(), ""
}
