// Package source packages workspace source and uploads it to the bucket the
// remote project builds from.
package source

import (
	"errors"
	"fmt"
	"strings"
)

const s3ARNPrefix = "arn:aws:s3:::"

// ErrInvalidLocation is returned for an S3 location without a bucket and key.
var ErrInvalidLocation = errors.New("invalid S3 object location")

// Location is an S3 bucket and key.
type Location struct {
	Bucket string
	Key    string
}

// String returns "bucket/key".
func (l Location) String() string {
	return l.Bucket + "/" + l.Key
}

// ParseLocation splits an S3 object ARN (arn:aws:s3:::bucket/key) or a plain
// bucket/key path.
func ParseLocation(s string) (Location, error) {
	rest := strings.TrimPrefix(strings.TrimSpace(s), s3ARNPrefix)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidLocation, s)
	}
	return Location{Bucket: bucket, Key: key}, nil
}
