package models

// OutcomeKind tags the result of one invocation.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
	OutcomeAborted
)

// String returns the outcome name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Outcome is the single result produced per invocation. Message and
// Secondary are set only for failures.
type Outcome struct {
	Kind      OutcomeKind
	Message   string
	Secondary string
}

// Success returns a successful outcome.
func Success() Outcome {
	return Outcome{Kind: OutcomeSuccess}
}

// Failure returns a failed outcome.
func Failure(message, secondary string) Outcome {
	return Outcome{Kind: OutcomeFailure, Message: message, Secondary: secondary}
}

// Aborted returns an aborted outcome.
func Aborted() Outcome {
	return Outcome{Kind: OutcomeAborted}
}

// ResultStatus is the caller-visible status of an invocation.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "SUCCESS"
	ResultFailure ResultStatus = "FAILURE"
	ResultAborted ResultStatus = "ABORTED"
)

// Result is the record handed to the calling pipeline.
type Result struct {
	Status            ResultStatus `json:"status"`
	BuildID           string       `json:"build_id,omitempty"`
	ARN               string       `json:"arn,omitempty"`
	ArtifactsLocation string       `json:"artifacts_location,omitempty"`
	ErrorMessage      string       `json:"error_message,omitempty"`
}
