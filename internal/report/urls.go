package report

import (
	"fmt"
	"net/url"
)

const s3ConsoleBaseURL = "https://console.aws.amazon.com/s3/buckets/"

// DashboardURL returns the console link for a build's log page.
func DashboardURL(region, project, buildID string) string {
	return fmt.Sprintf(
		"https://%s.console.aws.amazon.com/codesuite/codebuild/projects/%s/build/%s/log?region=%s",
		region, project, buildID, region,
	)
}

// S3ArtifactURL returns the S3 console link for an artifact location. Only
// S3 artifacts with a known location have one.
func S3ArtifactURL(location, artifactType string) string {
	if location == "" || artifactType != "S3" {
		return ""
	}
	return s3ConsoleBaseURL + url.QueryEscape(location)
}
