package source

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/narvanalabs/codebuild-runner/internal/codebuild"
	"github.com/narvanalabs/codebuild-runner/pkg/logger"
)

type fakeStore struct {
	in      *codebuild.PutObjectInput
	body    []byte
	version string
	err     error
}

func (s *fakeStore) BucketVersioned(ctx context.Context, bucket string) (bool, error) {
	return true, nil
}

func (s *fakeStore) PutObject(ctx context.Context, in *codebuild.PutObjectInput) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.in = in
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return "", err
	}
	s.body = body
	return s.version, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in      string
		want    Location
		wantErr bool
	}{
		{"arn:aws:s3:::my-bucket/path/source.zip", Location{"my-bucket", "path/source.zip"}, false},
		{"my-bucket/source.zip", Location{"my-bucket", "source.zip"}, false},
		{"my-bucket", Location{}, true},
		{"arn:aws:s3:::/key", Location{}, true},
		{"", Location{}, true},
	}
	for _, tt := range tests {
		got, err := ParseLocation(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLocation(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidLocation) {
			t.Errorf("ParseLocation(%q) error = %v, want ErrInvalidLocation", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLocation(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestUploadWorkspaceZip(t *testing.T) {
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, "main.go"), "package main\n")
	writeFile(t, filepath.Join(ws, "pkg", "lib.go"), "package pkg\n")

	staging := t.TempDir()
	var console bytes.Buffer
	store := &fakeStore{version: "v-123"}
	u := NewUploader(store, WithTempDir(staging), WithConsole(logger.NewConsole(&console)))

	out, err := u.Upload(context.Background(), UploadInput{
		Workspace:    ws,
		SSEAlgorithm: "AES256",
		Target:       Location{Bucket: "src-bucket", Key: "proj/source.zip"},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if out.ObjectLocation != "src-bucket/proj/source.zip" || out.VersionID != "v-123" {
		t.Errorf("Upload() = %+v", out)
	}
	if store.in.SSEAlgorithm != "AES256" || store.in.ContentLength != int64(len(store.body)) {
		t.Errorf("PutObject input = %+v", store.in)
	}

	sum := md5.Sum(store.body)
	if want := base64.StdEncoding.EncodeToString(sum[:]); store.in.ContentMD5 != want {
		t.Errorf("ContentMD5 = %q, want %q", store.in.ContentMD5, want)
	}

	zr, err := zip.NewReader(bytes.NewReader(store.body), int64(len(store.body)))
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	if got := strings.Join(names, ","); got != "main.go,pkg/,pkg/lib.go" {
		t.Errorf("archive entries = %s", got)
	}

	if !strings.Contains(console.String(), "Zipping directory to upload to S3: "+ws) {
		t.Errorf("console = %q", console.String())
	}
	if !strings.Contains(console.String(), "Uploading to S3 at location src-bucket/proj/source.zip. MD5 checksum is "+store.in.ContentMD5) {
		t.Errorf("console = %q", console.String())
	}

	entries, _ := os.ReadDir(staging)
	if len(entries) != 0 {
		t.Errorf("staged files left behind: %v", entries)
	}
}

func TestUploadSubdir(t *testing.T) {
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, "root.txt"), "root")
	writeFile(t, filepath.Join(ws, "app", "app.txt"), "app")

	store := &fakeStore{version: "v1"}
	_, err := NewUploader(store, WithTempDir(t.TempDir())).Upload(context.Background(), UploadInput{
		Workspace: ws,
		Subdir:    "app",
		Target:    Location{Bucket: "b", Key: "k.zip"},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(store.body), int64(len(store.body)))
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "app.txt" {
		t.Errorf("archive entries = %v", zr.File)
	}
}

func TestUploadLocalFile(t *testing.T) {
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, "dist", "bundle.zip"), "prebuilt-bundle")

	store := &fakeStore{version: "v2"}
	out, err := NewUploader(store, WithTempDir(t.TempDir())).Upload(context.Background(), UploadInput{
		Workspace: ws,
		LocalPath: "dist/bundle.zip",
		Target:    Location{Bucket: "b", Key: "bundle.zip"},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if string(store.body) != "prebuilt-bundle" {
		t.Errorf("uploaded body = %q", store.body)
	}
	if out.VersionID != "v2" {
		t.Errorf("VersionID = %q", out.VersionID)
	}
}

func TestUploadErrors(t *testing.T) {
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, "file.txt"), "x")

	tests := []struct {
		name string
		in   UploadInput
		want error
	}{
		{"missing workspace", UploadInput{Workspace: filepath.Join(ws, "nope")}, ErrWorkspaceMissing},
		{"missing local file", UploadInput{Workspace: ws, LocalPath: "missing.zip"}, ErrLocalSourceInvalid},
		{"local path escapes", UploadInput{Workspace: ws, LocalPath: "../file.txt"}, ErrLocalSourceInvalid},
		{"subdir is file", UploadInput{Workspace: ws, Subdir: "file.txt"}, ErrSubdirInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Target = Location{Bucket: "b", Key: "k"}
			_, err := NewUploader(&fakeStore{}, WithTempDir(t.TempDir())).Upload(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Upload() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUploadStoreError(t *testing.T) {
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, "a.txt"), "a")
	storeErr := errors.New("access denied")

	_, err := NewUploader(&fakeStore{err: storeErr}, WithTempDir(t.TempDir())).Upload(context.Background(), UploadInput{
		Workspace: ws,
		Target:    Location{Bucket: "b", Key: "k"},
	})
	if !errors.Is(err, storeErr) {
		t.Errorf("Upload() error = %v, want %v", err, storeErr)
	}
}
