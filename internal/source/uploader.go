package source

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/narvanalabs/codebuild-runner/internal/codebuild"
	"github.com/narvanalabs/codebuild-runner/pkg/logger"
)

var (
	// ErrWorkspaceMissing is returned when the workspace is not a directory.
	ErrWorkspaceMissing = errors.New("workspace directory does not exist")

	// ErrLocalSourceInvalid is returned when the local source path is not a
	// regular file inside the workspace.
	ErrLocalSourceInvalid = errors.New("local source path must be a file inside the workspace")

	// ErrSubdirInvalid is returned when the workspace subdirectory is not a
	// directory inside the workspace.
	ErrSubdirInvalid = errors.New("workspace subdirectory must be a directory inside the workspace")
)

// UploadInput describes what to upload and where.
type UploadInput struct {
	Workspace    string
	LocalPath    string
	Subdir       string
	SSEAlgorithm string
	Target       Location
}

// UploadOutput is the uploaded object and its version.
type UploadOutput struct {
	ObjectLocation string
	VersionID      string
}

// Uploader packages and uploads build source.
type Uploader struct {
	store   codebuild.ObjectStore
	console *logger.Console
	logger  *slog.Logger
	tempDir string
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithConsole sets the operator console for progress lines.
func WithConsole(c *logger.Console) UploaderOption {
	return func(u *Uploader) {
		u.console = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) UploaderOption {
	return func(u *Uploader) {
		u.logger = l
	}
}

// WithTempDir sets where the upload archive is staged. Empty keeps the
// system temp directory.
func WithTempDir(dir string) UploaderOption {
	return func(u *Uploader) {
		if dir != "" {
			u.tempDir = dir
		}
	}
}

// NewUploader creates an uploader writing to store.
func NewUploader(store codebuild.ObjectStore, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		store:   store,
		logger:  slog.Default(),
		tempDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload stages the source and puts it at in.Target. With a local path the
// file is uploaded as is; otherwise the workspace (or its subdirectory) is
// zipped. The staged file is always removed.
func (u *Uploader) Upload(ctx context.Context, in UploadInput) (*UploadOutput, error) {
	if info, err := os.Stat(in.Workspace); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceMissing, in.Workspace)
	}

	staged, err := u.stagedFile(in.Target.Key)
	if err != nil {
		return nil, err
	}
	defer os.Remove(staged.Name())
	defer staged.Close()

	var sum []byte
	if in.LocalPath != "" {
		sum, err = u.stageFile(staged, in.Workspace, in.LocalPath)
	} else {
		sum, err = u.stageDir(staged, in.Workspace, in.Subdir)
	}
	if err != nil {
		return nil, err
	}

	size, err := staged.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("sizing staged source: %w", err)
	}
	if _, err := staged.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding staged source: %w", err)
	}

	md5sum := base64.StdEncoding.EncodeToString(sum)
	u.console.Log(fmt.Sprintf("Uploading to S3 at location %s. MD5 checksum is %s", in.Target, md5sum))

	version, err := u.store.PutObject(ctx, &codebuild.PutObjectInput{
		Bucket:        in.Target.Bucket,
		Key:           in.Target.Key,
		Body:          staged,
		ContentLength: size,
		ContentMD5:    md5sum,
		SSEAlgorithm:  in.SSEAlgorithm,
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("source uploaded", "location", in.Target.String(), "version_id", version, "bytes", size)
	return &UploadOutput{ObjectLocation: in.Target.String(), VersionID: version}, nil
}

// stagedFile creates the temp file named <uuid>-<key>.
func (u *Uploader) stagedFile(key string) (*os.File, error) {
	name := uuid.NewString() + "-" + strings.ReplaceAll(key, "/", "-")
	f, err := os.OpenFile(filepath.Join(u.tempDir, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating staged source: %w", err)
	}
	return f, nil
}

// stageFile copies a single workspace file into dst and returns its MD5.
func (u *Uploader) stageFile(dst io.Writer, workspace, localPath string) ([]byte, error) {
	if !filepath.IsLocal(localPath) {
		return nil, fmt.Errorf("%w: %s", ErrLocalSourceInvalid, localPath)
	}
	path := filepath.Join(workspace, localPath)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrLocalSourceInvalid, path)
	}
	u.console.Log("Local file to be uploaded to S3: " + path)

	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening local source: %w", err)
	}
	defer src.Close()

	h := md5.New()
	if _, err := io.Copy(io.MultiWriter(dst, h), src); err != nil {
		return nil, fmt.Errorf("staging local source: %w", err)
	}
	return h.Sum(nil), nil
}

// stageDir zips the workspace or subdir into dst and returns the archive MD5.
func (u *Uploader) stageDir(dst io.Writer, workspace, subdir string) ([]byte, error) {
	root := workspace
	if subdir != "" {
		if !filepath.IsLocal(subdir) {
			return nil, fmt.Errorf("%w: %s", ErrSubdirInvalid, subdir)
		}
		root = filepath.Join(workspace, subdir)
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrSubdirInvalid, root)
		}
	}
	u.console.Log("Zipping directory to upload to S3: " + root)

	h := md5.New()
	if err := ZipDir(io.MultiWriter(dst, h), root); err != nil {
		return nil, fmt.Errorf("zipping source: %w", err)
	}
	return h.Sum(nil), nil
}

// ZipDir writes a deflated archive of every regular file and directory under
// root. Entry names are slash-separated and relative to root.
func ZipDir(w io.Writer, root string) error {
	zw := zip.NewWriter(w)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			zh, err := zip.FileInfoHeader(info)
			if err != nil {
				return err
			}
			zh.Name = name + "/"
			_, err = zw.CreateHeader(zh)
			return err
		case info.Mode().IsRegular():
			zh, err := zip.FileInfoHeader(info)
			if err != nil {
				return err
			}
			zh.Name = name
			zh.Method = zip.Deflate
			fw, err := zw.CreateHeader(zh)
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(fw, f)
			return err
		default:
			return nil
		}
	})
	if err != nil {
		return err
	}
	return zw.Close()
}
