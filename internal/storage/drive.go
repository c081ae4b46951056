package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveOptions locates the folder tree attachments live in.
type DriveOptions struct {
	RootFolderName     string
	RootFolderID       string
	RequestsFolderName string
	SharedDriveID      string
}

// DriveBackend stores blobs in Google Drive under
// <root>/<requests>/<request id>/. Root and requests folder ids are resolved
// once and cached.
type DriveBackend struct {
	files *drive.FilesService
	opts  DriveOptions

	mu         sync.Mutex
	rootID     string
	requestsID string
}

// NewDriveBackend builds the Drive client. clientOpts carry credentials
// (see DriveCredentials) or, in tests, an endpoint override.
func NewDriveBackend(ctx context.Context, opts DriveOptions, clientOpts ...option.ClientOption) (*DriveBackend, error) {
	srv, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create drive client: %w", err)
	}
	opts.RootFolderID = strings.TrimSpace(opts.RootFolderID)
	opts.SharedDriveID = strings.TrimSpace(opts.SharedDriveID)
	if opts.RootFolderName == "" {
		opts.RootFolderName = "ExpenseControl"
	}
	if opts.RequestsFolderName == "" {
		opts.RequestsFolderName = "requests"
	}
	return &DriveBackend{files: srv.Files, opts: opts}, nil
}

func (d *DriveBackend) sharedDrive() bool {
	return d.opts.SharedDriveID != ""
}

func (d *DriveBackend) EnsureFolder(ctx context.Context, requestID uint) (string, error) {
	requestsID, err := d.ensureRequestsFolder(ctx)
	if err != nil {
		return "", err
	}
	return d.findOrCreateFolder(ctx, requestsID, strconv.FormatUint(uint64(requestID), 10))
}

func (d *DriveBackend) ensureRequestsFolder(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.requestsID != "" {
		return d.requestsID, nil
	}
	if d.rootID == "" {
		rootID, err := d.resolveRoot(ctx)
		if err != nil {
			return "", err
		}
		d.rootID = rootID
	}
	requestsID, err := d.findOrCreateFolder(ctx, d.rootID, d.opts.RequestsFolderName)
	if err != nil {
		return "", err
	}
	d.requestsID = requestsID
	return requestsID, nil
}

func (d *DriveBackend) resolveRoot(ctx context.Context) (string, error) {
	if d.opts.RootFolderID != "" {
		return d.opts.RootFolderID, nil
	}
	parent := ""
	if d.sharedDrive() {
		parent = d.opts.SharedDriveID
	}
	return d.findOrCreateFolder(ctx, parent, d.opts.RootFolderName)
}

func (d *DriveBackend) findOrCreateFolder(ctx context.Context, parentID, name string) (string, error) {
	id, err := d.findFolder(ctx, parentID, name)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	meta := &drive.File{Name: name, MimeType: folderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	call := d.files.Create(meta).Fields("id").Context(ctx)
	if d.sharedDrive() {
		call = call.SupportsAllDrives(true)
	}
	created, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("create drive folder %q: %w", name, err)
	}
	return created.Id, nil
}

func (d *DriveBackend) findFolder(ctx context.Context, parentID, name string) (string, error) {
	q := fmt.Sprintf("mimeType='%s' and name='%s' and trashed=false", folderMimeType, escapeQuery(name))
	if parentID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}

	call := d.files.List().Q(q).PageSize(1).Fields("files(id, name)").Context(ctx)
	if d.sharedDrive() {
		call = call.SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Corpora("drive").
			DriveId(d.opts.SharedDriveID)
	}
	list, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("search drive folder %q: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (d *DriveBackend) Upload(ctx context.Context, folderRef, name string, r io.Reader, _ int64, contentType string) (string, error) {
	meta := &drive.File{Name: name, Parents: []string{folderRef}}
	call := d.files.Create(meta).
		Media(r, googleapi.ContentType(contentType)).
		Fields("id").
		Context(ctx)
	if d.sharedDrive() {
		call = call.SupportsAllDrives(true)
	}
	uploaded, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("upload to drive: %w", err)
	}
	return uploaded.Id, nil
}

func (d *DriveBackend) Download(ctx context.Context, fileRef string) (io.ReadCloser, error) {
	call := d.files.Get(fileRef).Context(ctx)
	if d.sharedDrive() {
		call = call.SupportsAllDrives(true)
	}
	resp, err := call.Download()
	if err != nil {
		return nil, fmt.Errorf("download from drive: %w", err)
	}
	return resp.Body, nil
}

func (d *DriveBackend) Delete(ctx context.Context, fileRef string) error {
	call := d.files.Delete(fileRef).Context(ctx)
	if d.sharedDrive() {
		call = call.SupportsAllDrives(true)
	}
	if err := call.Do(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("delete from drive: %w", err)
	}
	return nil
}

func escapeQuery(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `'`, `\'`)
}
