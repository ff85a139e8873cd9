// Package result turns an invocation outcome into the record and status
// handed back to the calling pipeline.
package result

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/narvanalabs/codebuild-runner/internal/models"
	"github.com/narvanalabs/codebuild-runner/internal/report"
	"github.com/narvanalabs/codebuild-runner/pkg/logger"
)

// FailureModeEnabled turns failures into hard errors.
const FailureModeEnabled = "ENABLED"

// Exit codes of the runner process.
const (
	ExitSuccess   = 0
	ExitFailure   = 1
	ExitHardError = 2
	ExitAborted   = 130
)

// AbortError is the hard error returned for a failure when exception
// failure mode is enabled.
type AbortError struct {
	Message   string
	Secondary string
}

// Error implements the error interface.
func (e *AbortError) Error() string {
	if e.Secondary == "" {
		return e.Message
	}
	return e.Message + "\n\t> " + e.Secondary
}

// Reporter writes the outcome to the operator log and builds the result.
type Reporter struct {
	console *logger.Console
	logger  *slog.Logger
}

// NewReporter creates a Reporter.
func NewReporter(console *logger.Console, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{console: console, logger: logger}
}

// Report builds the result of outcome. rep may be nil when the build never
// reported status. A non-nil error is returned only for failures under
// exception failure mode; the result is valid either way.
func (r *Reporter) Report(outcome models.Outcome, rep *report.Report, failureMode string) (models.Result, error) {
	var res models.Result
	if rep != nil {
		res.BuildID = rep.BuildID()
		res.ARN = rep.ARN()
		res.ArtifactsLocation = rep.ArtifactsLocation()
	}

	switch outcome.Kind {
	case models.OutcomeSuccess:
		res.Status = models.ResultSuccess
		r.console.Log("Build succeeded")
		r.logger.Info("build succeeded", "build_id", res.BuildID)
		return res, nil

	case models.OutcomeAborted:
		res.Status = models.ResultAborted
		r.console.Log("Build aborted")
		r.logger.Info("build aborted", "build_id", res.BuildID)
		return res, nil

	default:
		res.Status = models.ResultFailure
		res.ErrorMessage = outcome.Message
		r.console.Log(outcome.Message, outcome.Secondary)
		r.logger.Error("build failed", "build_id", res.BuildID, "message", outcome.Message, "detail", outcome.Secondary)

		if strings.EqualFold(strings.TrimSpace(failureMode), FailureModeEnabled) {
			return res, &AbortError{Message: outcome.Message, Secondary: outcome.Secondary}
		}
		return res, nil
	}
}

// ExitCode maps a result and the error returned with it to a process exit
// code. Any error, including *AbortError, is a hard error.
func ExitCode(res models.Result, err error) int {
	if err != nil {
		return ExitHardError
	}

	switch res.Status {
	case models.ResultSuccess:
		return ExitSuccess
	case models.ResultAborted:
		return ExitAborted
	default:
		return ExitFailure
	}
}

// WriteFile writes res as JSON to path.
func WriteFile(path string, res models.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing result file: %w", err)
	}
	return nil
}
