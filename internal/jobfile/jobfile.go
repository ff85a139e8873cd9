// Package jobfile loads a BuildConfig from an HCL job file.
//
// A job file holds one attribute per setting:
//
//	project_name        = "my-project"
//	source_control_type = "project"
//	region              = env.AWS_REGION
//	image_override      = "aws/codebuild/standard:7.0"
//
// Process environment variables are in scope as env.NAME.
package jobfile

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// Load parses the job file at path. environ is in KEY=VALUE form, as
// returned by os.Environ.
func Load(path string, environ []string) (models.BuildConfig, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return models.BuildConfig{}, fmt.Errorf("reading job file: %w", err)
	}
	return Parse(src, path, environ)
}

// Parse parses job file source. filename is only used in diagnostics.
func Parse(src []byte, filename string, environ []string) (models.BuildConfig, error) {
	var cfg models.BuildConfig

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return cfg, fmt.Errorf("failed to parse job file %s: %w", filename, diags)
	}

	diags = gohcl.DecodeBody(file.Body, EvalContext(environ), &cfg)
	if diags.HasErrors() {
		return cfg, fmt.Errorf("failed to decode job file %s: %w", filename, diags)
	}

	slog.Debug("loaded job file", "file", filename, "project", cfg.ProjectName)
	return cfg, nil
}

// EvalContext returns the evaluation context with environ exposed as env.
func EvalContext(environ []string) *hcl.EvalContext {
	env := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}
