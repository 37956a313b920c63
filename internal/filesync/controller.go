// Package filesync drives the user's file list: refresh, upload, folders,
// download, stars and backups. It is frontend-agnostic; views read
// snapshots from the FileListState and subscribe to the event bus.
package filesync

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/cloudvault/cloudvault-cli/internal/api"
	"github.com/cloudvault/cloudvault-cli/internal/constants"
	"github.com/cloudvault/cloudvault-cli/internal/events"
	"github.com/cloudvault/cloudvault-cli/internal/logging"
	"github.com/cloudvault/cloudvault-cli/internal/models"
	"github.com/cloudvault/cloudvault-cli/internal/session"
	"github.com/cloudvault/cloudvault-cli/internal/state"
	"github.com/cloudvault/cloudvault-cli/internal/transfer"
)

var (
	ErrFolderNameRequired = errors.New("Folder name is required")
	ErrInvalidFolderName  = errors.New("Folder name cannot contain / or \\")
	ErrNotSupported       = errors.New("operation not supported by the server")
	ErrSessionEnded       = errors.New("session ended")
)

// VaultAPI is the subset of the API client the controller needs.
type VaultAPI interface {
	ListFiles(ctx context.Context, userPath string) (*models.ListFilesResponse, error)
	Upload(ctx context.Context, filename string, content []byte) (*models.UploadResponse, error)
	Download(ctx context.Context, key string) (*models.DownloadResponse, error)
	Backup(ctx context.Context, name string) (*models.BackupResponse, error)
	Restore(ctx context.Context, name string) (*models.RestoreResponse, error)
}

// Session is the subset of the session manager the controller needs.
type Session interface {
	Snapshot() session.Snapshot
	Context() context.Context
	Expire()
	UpdateQuota(q *models.StorageQuota)
	OnEnd(fn func(reason string)) (remove func())
}

// Controller coordinates file operations against the vault.
// Safe for concurrent use; batch uploads run sequentially.
type Controller struct {
	api      VaultAPI
	session  Session
	files    *state.FileListState
	queue    *transfer.Queue
	eventBus *events.EventBus
	logger   *logging.Logger

	mu        sync.Mutex
	watchOnce sync.Once
	stopWatch func()
}

// NewController creates a Controller. eventBus and logger may be nil.
func NewController(vault VaultAPI, sess Session, files *state.FileListState, eventBus *events.EventBus, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if files == nil {
		files = state.NewFileListState(eventBus)
	}
	return &Controller{
		api:      vault,
		session:  sess,
		files:    files,
		queue:    transfer.NewQueue(eventBus),
		eventBus: eventBus,
		logger:   logger.Component("filesync"),
	}
}

// State returns the observable file list.
func (c *Controller) State() *state.FileListState {
	return c.files
}

// Queue returns the upload tracker.
func (c *Controller) Queue() *transfer.Queue {
	return c.queue
}

// Watch clears the cached list and finished tasks whenever the session
// ends. The clear happens before Logout or Expire returns, so a later login
// never sees the previous user's files. Call Close to stop watching.
func (c *Controller) Watch() {
	c.watchOnce.Do(func() {
		remove := c.session.OnEnd(func(reason string) {
			c.files.Clear()
			c.queue.ClearCompleted()
			c.logger.Debugf("Cleared file list (%s)", reason)
		})
		c.mu.Lock()
		c.stopWatch = remove
		c.mu.Unlock()
	})
}

// Close stops the session watcher started by Watch.
func (c *Controller) Close() {
	c.mu.Lock()
	remove := c.stopWatch
	c.stopWatch = nil
	c.mu.Unlock()
	if remove != nil {
		remove()
	}
}

// opContext derives a context that is also cancelled when the session ends.
func (c *Controller) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(c.session.Context(), func() {
		cancel(ErrSessionEnded)
	})
	return opCtx, func() {
		stop()
		cancel(nil)
	}
}

// userKey returns the namespace of the authenticated user.
func (c *Controller) userKey() (string, error) {
	snap := c.session.Snapshot()
	if !snap.IsAuthenticated() {
		return "", session.ErrNotAuthenticated
	}
	return snap.UserKey(), nil
}

// handleAuthError ends the session when the server rejected the token.
func (c *Controller) handleAuthError(operation string, err error) {
	if !api.IsAuthError(err) {
		return
	}
	c.logger.Warnf("%s: token rejected, logging out: %v", operation, err)
	c.session.Expire()
	c.files.Clear()
	if c.eventBus != nil {
		c.eventBus.PublishError(operation, err, true)
	}
}

// Refresh reloads the file list. Only the most recently started refresh
// is applied; older responses are discarded. Auth errors end the
// session; any other error leaves the list and the session as they were.
func (c *Controller) Refresh(ctx context.Context) error {
	key, err := c.userKey()
	if err != nil {
		return err
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	seq := c.files.Begin()
	c.files.SetLoading(true)
	defer c.files.SetLoading(false)

	resp, err := c.api.ListFiles(ctx, key)
	if err != nil {
		c.logger.Errorf("Failed to list files: %v", err)
		if api.IsAuthError(err) {
			c.handleAuthError("list", err)
		} else {
			c.files.SetError(err)
		}
		return fmt.Errorf("failed to list files: %w", err)
	}

	records := make([]models.FileRecord, 0, len(resp.Files))
	for _, f := range resp.Files {
		records = append(records, f.ToRecord(key))
	}

	if !c.files.Apply(seq, records) {
		c.logger.Debugf("Discarded stale file list (seq %d)", seq)
		return nil
	}
	c.session.UpdateQuota(resp.Storage)

	c.logger.Debugf("File list refreshed: %d entries", len(records))
	return nil
}

// Upload stores one file and refreshes the list. Empty content is valid.
func (c *Controller) Upload(ctx context.Context, filename string, content []byte) error {
	if err := c.upload(ctx, filename, content); err != nil {
		return err
	}
	return c.Refresh(ctx)
}

func (c *Controller) upload(ctx context.Context, filename string, content []byte) error {
	if _, err := c.userKey(); err != nil {
		return err
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	resp, err := c.api.Upload(ctx, filename, content)
	if err != nil {
		if code := api.StatusCode(err); code != 0 {
			c.logger.Errorf("Upload of %s failed (HTTP %d): %v", filename, code, err)
		} else {
			c.logger.Errorf("Upload of %s failed: %v", filename, err)
		}
		c.handleAuthError("upload", err)
		return err
	}
	c.session.UpdateQuota(resp.Storage)
	c.logger.Infof("Uploaded %s (%d bytes)", filename, len(content))
	return nil
}

// UploadBatch uploads files one after another. A failed file never stops
// the rest. Once ctx is done, files not yet started fail with the context
// error. The list is refreshed once at the end when anything succeeded.
func (c *Controller) UploadBatch(ctx context.Context, files []transfer.File) transfer.BatchResult {
	result := c.queue.RunBatch(ctx, files, func(ctx context.Context, f transfer.File) error {
		return c.upload(ctx, f.Name, f.Content)
	})

	c.logger.Infof("Batch %s finished: %d succeeded, %d failed", result.BatchID, result.Succeeded(), result.Failed())

	if result.Succeeded() > 0 && ctx.Err() == nil {
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warnf("Refresh after batch failed: %v", err)
		}
	}
	return result
}

// CreateFolder creates a folder by uploading an empty marker object.
func (c *Controller) CreateFolder(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrFolderNameRequired
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidFolderName
	}
	return c.Upload(ctx, name+"/"+constants.FolderMarker, nil)
}

// Download fetches and decodes a whole file. The server key is taken from
// the cached record when known, otherwise filename is used as is.
func (c *Controller) Download(ctx context.Context, filename string) ([]byte, error) {
	if _, err := c.userKey(); err != nil {
		return nil, err
	}

	key := filename
	if rec, ok := c.files.Find(filename); ok {
		key = rec.RemoteKey()
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	resp, err := c.api.Download(ctx, key)
	if err != nil {
		c.logger.Errorf("Download of %s failed: %v", filename, err)
		c.handleAuthError("download", err)
		return nil, err
	}

	if resp.Encoding != "" && resp.Encoding != "base64" {
		return []byte(resp.Content), nil
	}
	data, err := base64.StdEncoding.DecodeString(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return data, nil
}

// DataURI builds a data: URI for content, typed by the filename extension.
func DataURI(filename string, content []byte) string {
	mimeType := mime.TypeByExtension(path.Ext(filename))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(content)
}

// Delete is not offered by the server. The list is left untouched.
func (c *Controller) Delete(ctx context.Context, filename string) error {
	return fmt.Errorf("delete %s: %w", filename, ErrNotSupported)
}

// ToggleStar flips the local star on a listed file.
func (c *Controller) ToggleStar(name string) (bool, error) {
	return c.files.ToggleStar(name)
}

// Files returns a copy of the list, folders first then by the sort key.
func (c *Controller) Files() []models.FileRecord {
	return c.files.Items()
}

// Backup snapshots the user's files on the server.
func (c *Controller) Backup(ctx context.Context, name string) (*models.BackupResponse, error) {
	if _, err := c.userKey(); err != nil {
		return nil, err
	}
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	resp, err := c.api.Backup(ctx, name)
	if err != nil {
		c.handleAuthError("backup", err)
		return nil, err
	}
	c.logger.Infof("Backup %q created", resp.BackupName)
	return resp, nil
}

// Restore restores a named backup and refreshes the list.
func (c *Controller) Restore(ctx context.Context, name string) (*models.RestoreResponse, error) {
	if _, err := c.userKey(); err != nil {
		return nil, err
	}
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	resp, err := c.api.Restore(ctx, name)
	if err != nil {
		c.handleAuthError("restore", err)
		return nil, err
	}
	c.logger.Infof("Restored %d files (%d failed) from %q", resp.RestoredCount, resp.FailedCount, name)

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warnf("Refresh after restore failed: %v", err)
	}
	return resp, nil
}
