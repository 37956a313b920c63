package filesync

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudvault/cloudvault-cli/internal/api"
	"github.com/cloudvault/cloudvault-cli/internal/events"
	"github.com/cloudvault/cloudvault-cli/internal/models"
	"github.com/cloudvault/cloudvault-cli/internal/session"
	"github.com/cloudvault/cloudvault-cli/internal/store"
	"github.com/cloudvault/cloudvault-cli/internal/transfer"
)

type fakeVault struct {
	listCalls     atomic.Int32
	uploadCalls   atomic.Int32
	downloadCalls atomic.Int32

	mu       sync.Mutex
	uploaded []string
	keys     []string

	list     func(ctx context.Context, userPath string) (*models.ListFilesResponse, error)
	upload   func(ctx context.Context, filename string, content []byte) (*models.UploadResponse, error)
	download func(ctx context.Context, key string) (*models.DownloadResponse, error)
	backup   func(ctx context.Context, name string) (*models.BackupResponse, error)
	restore  func(ctx context.Context, name string) (*models.RestoreResponse, error)
}

func (f *fakeVault) ListFiles(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
	f.listCalls.Add(1)
	if f.list == nil {
		return &models.ListFilesResponse{}, nil
	}
	return f.list(ctx, userPath)
}

func (f *fakeVault) Upload(ctx context.Context, filename string, content []byte) (*models.UploadResponse, error) {
	f.uploadCalls.Add(1)
	f.mu.Lock()
	f.uploaded = append(f.uploaded, filename)
	f.mu.Unlock()
	if f.upload == nil {
		return &models.UploadResponse{Status: "success"}, nil
	}
	return f.upload(ctx, filename, content)
}

func (f *fakeVault) Download(ctx context.Context, key string) (*models.DownloadResponse, error) {
	f.downloadCalls.Add(1)
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	return f.download(ctx, key)
}

func (f *fakeVault) Backup(ctx context.Context, name string) (*models.BackupResponse, error) {
	return f.backup(ctx, name)
}

func (f *fakeVault) Restore(ctx context.Context, name string) (*models.RestoreResponse, error) {
	return f.restore(ctx, name)
}

type fakeSession struct {
	mu      sync.Mutex
	snap    session.Snapshot
	ctx     context.Context
	cancel  context.CancelFunc
	expired int
	quota   *models.StorageQuota
	hooks   []func(reason string)
}

func newAuthedSession(userID string) *fakeSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeSession{
		snap: session.Snapshot{
			State: session.StateAuthenticated,
			User:  &models.User{UserID: userID, Email: userID + "@example.com"},
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *fakeSession) Snapshot() session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *fakeSession) Context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *fakeSession) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired++
	s.snap = session.Snapshot{State: session.StateUnauthenticated}
	s.cancel()
	for _, fn := range s.hooks {
		if fn != nil {
			fn(session.ReasonAuthError)
		}
	}
}

func (s *fakeSession) OnEnd(fn func(reason string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.hooks)
	s.hooks = append(s.hooks, fn)
	return func() {
		s.mu.Lock()
		s.hooks[i] = nil
		s.mu.Unlock()
	}
}

func (s *fakeSession) UpdateQuota(q *models.StorageQuota) {
	if q == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quota = q
}

func (s *fakeSession) expireCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

func listOf(names ...string) *models.ListFilesResponse {
	resp := &models.ListFilesResponse{Status: "success"}
	for _, n := range names {
		resp.Files = append(resp.Files, models.RemoteFile{Filename: n, Size: 10})
	}
	return resp
}

func names(records []models.FileRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func newTestController(vault *fakeVault, sess *fakeSession) *Controller {
	return NewController(vault, sess, nil, nil, nil)
}

func TestRefresh_AppliesListAndQuota(t *testing.T) {
	sess := newAuthedSession("u1")
	vault := &fakeVault{
		list: func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
			assert.Equal(t, "u1", userPath)
			resp := &models.ListFilesResponse{
				Files: []models.RemoteFile{
					{Path: "u1/report.pdf", Size: 2048, Updated: "2024-05-01T10:00:00"},
					{Filename: "docs/.folder"},
				},
				Storage: &models.StorageQuota{Used: 2048, Limit: 1 << 30},
			}
			return resp, nil
		},
	}
	c := newTestController(vault, sess)

	require.NoError(t, c.Refresh(context.Background()))

	files := c.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "docs/.folder", files[0].Name, "folders sort first")
	assert.True(t, files[0].IsFolder())
	assert.Equal(t, "report.pdf", files[1].Name)
	assert.Equal(t, "u1/report.pdf", files[1].RemoteKey())
	assert.Equal(t, "2024-05-01T10:00:00", files[1].UploadedAt)

	require.NotNil(t, sess.quota)
	assert.EqualValues(t, 2048, sess.quota.Used)
}

func TestRefresh_AuthErrorEndsSession(t *testing.T) {
	sess := newAuthedSession("u1")
	vault := &fakeVault{}
	c := newTestController(vault, sess)

	vault.list = func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
		return listOf("a.txt"), nil
	}
	require.NoError(t, c.Refresh(context.Background()))
	require.Equal(t, 1, c.State().Count())

	vault.list = func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
		return nil, &api.APIError{StatusCode: 401, Message: "Invalid token"}
	}
	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))

	assert.Equal(t, 1, sess.expireCount())
	assert.Equal(t, 0, c.State().Count(), "list must be cleared")
}

func TestRefresh_NetworkErrorKeepsState(t *testing.T) {
	sess := newAuthedSession("u1")
	vault := &fakeVault{}
	c := newTestController(vault, sess)

	vault.list = func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
		return listOf("a.txt", "b.txt"), nil
	}
	require.NoError(t, c.Refresh(context.Background()))

	netErr := errors.Join(api.ErrNetwork, errors.New("dial tcp: connection refused"))
	vault.list = func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
		return nil, netErr
	}
	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsNetworkError(err))

	assert.Equal(t, 0, sess.expireCount(), "network errors must not log out")
	assert.Equal(t, []string{"a.txt", "b.txt"}, names(c.Files()))
	assert.Error(t, c.State().GetError())
	assert.True(t, sess.Snapshot().IsAuthenticated())
}

func TestRefresh_StaleResponseDiscarded(t *testing.T) {
	sess := newAuthedSession("u1")
	release := make(chan struct{})
	vault := &fakeVault{}
	vault.list = func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
		if vault.listCalls.Load() == 1 {
			<-release
			return listOf("old.txt"), nil
		}
		return listOf("new.txt"), nil
	}
	c := newTestController(vault, sess)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Refresh(context.Background()) }()
	require.Eventually(t, func() bool { return vault.listCalls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.Refresh(context.Background()))
	close(release)
	require.NoError(t, <-errCh)

	assert.Equal(t, []string{"new.txt"}, names(c.Files()))
}

func TestRefresh_RequiresAuthentication(t *testing.T) {
	sess := newAuthedSession("u1")
	sess.Expire()
	vault := &fakeVault{}
	c := newTestController(vault, sess)

	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	err = c.Upload(context.Background(), "x", []byte("x"))
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Zero(t, vault.listCalls.Load())
	assert.Zero(t, vault.uploadCalls.Load())
}

func TestUpload_RefreshesOnSuccess(t *testing.T) {
	sess := newAuthedSession("u1")
	vault := &fakeVault{
		list: func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
			return listOf("notes.txt"), nil
		},
	}
	c := newTestController(vault, sess)

	require.NoError(t, c.Upload(context.Background(), "notes.txt", []byte("hello")))
	assert.EqualValues(t, 1, vault.uploadCalls.Load())
	assert.EqualValues(t, 1, vault.listCalls.Load())
	assert.Equal(t, []string{"notes.txt"}, names(c.Files()))
}

func TestUpload_FailurePropagatesWithoutInsert(t *testing.T) {
	sess := newAuthedSession("u1")
	vault := &fakeVault{
		upload: func(ctx context.Context, filename string, content []byte) (*models.UploadResponse, error) {
			return nil, &api.APIError{StatusCode: 413, Message: "Storage quota exceeded"}
		},
	}
	c := newTestController(vault, sess)

	err := c.Upload(context.Background(), "big.bin", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, "Storage quota exceeded", err.Error())
	assert.Zero(t, vault.listCalls.Load(), "no refresh after a failed upload")
	assert.Zero(t, c.State().Count(), "no optimistic insert")
	assert.Zero(t, sess.expireCount())
}

func TestUploadBatch_IndependentFailures(t *testing.T) {
	sess := newAuthedSession("u1")
	vault := &fakeVault{
		upload: func(ctx context.Context, filename string, content []byte) (*models.UploadResponse, error) {
			if filename == "b.txt" {
				return nil, &api.APIError{StatusCode: 413, Message: "File too large"}
			}
			return &models.UploadResponse{Status: "success"}, nil
		},
		list: func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
			return listOf("a.txt", "c.txt"), nil
		},
	}
	c := newTestController(vault, sess)

	result := c.UploadBatch(context.Background(), []transfer.File{
		{Name: "a.txt", Content: []byte("a")},
		{Name: "b.txt", Content: []byte("b")},
		{Name: "c.txt", Content: []byte("c")},
	})

	require.Len(t, result.Tasks, 3)
	assert.Equal(t, transfer.StatusSuccess, result.Tasks[0].Status)
	assert.Equal(t, transfer.StatusError, result.Tasks[1].Status)
	assert.Equal(t, transfer.StatusSuccess, result.Tasks[2].Status)
	assert.Equal(t, 413, api.StatusCode(result.Tasks[1].Err))
	assert.EqualError(t, result.Tasks[1].Err, "File too large")
	assert.Zero(t, sess.expireCount(), "a 413 does not end the session")
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, vault.uploaded)
	assert.EqualValues(t, 1, vault.listCalls.Load(), "one refresh per batch")
	assert.Equal(t, 3, c.Queue().Stats().Total())
}

func TestCreateFolder(t *testing.T) {
	sess := newAuthedSession("u1")
	var gotContent []byte
	vault := &fakeVault{
		upload: func(ctx context.Context, filename string, content []byte) (*models.UploadResponse, error) {
			gotContent = content
			return &models.UploadResponse{Status: "success"}, nil
		},
		list: func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
			return listOf("Reports/.folder"), nil
		},
	}
	c := newTestController(vault, sess)

	assert.ErrorIs(t, c.CreateFolder(context.Background(), "   "), ErrFolderNameRequired)
	assert.ErrorIs(t, c.CreateFolder(context.Background(), "a/b"), ErrInvalidFolderName)
	assert.ErrorIs(t, c.CreateFolder(context.Background(), `a\b`), ErrInvalidFolderName)
	assert.Zero(t, vault.uploadCalls.Load())

	require.NoError(t, c.CreateFolder(context.Background(), "  Reports "))
	assert.Equal(t, []string{"Reports/.folder"}, vault.uploaded)
	assert.Empty(t, gotContent)
	assert.EqualValues(t, 1, vault.listCalls.Load())

	files := c.Files()
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name, "Reports/"), files[0].Name)
	assert.True(t, files[0].IsFolder())
	assert.Equal(t, "Reports", files[0].FolderPath())
}

func TestDownload_UsesServerKeyAndDecodes(t *testing.T) {
	sess := newAuthedSession("u1")
	vault := &fakeVault{
		list: func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
			return &models.ListFilesResponse{Files: []models.RemoteFile{{Path: "u1/hello.txt"}}}, nil
		},
		download: func(ctx context.Context, key string) (*models.DownloadResponse, error) {
			return &models.DownloadResponse{
				Content:  base64.StdEncoding.EncodeToString([]byte("hello world")),
				Encoding: "base64",
			}, nil
		},
	}
	c := newTestController(vault, sess)
	require.NoError(t, c.Refresh(context.Background()))

	data, err := c.Download(context.Background(), "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	_, err = c.Download(context.Background(), "unknown.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1/hello.txt", "unknown.txt"}, vault.keys)
}

func TestDownload_InvalidPayload(t *testing.T) {
	sess := newAuthedSession("u1")
	vault := &fakeVault{
		download: func(ctx context.Context, key string) (*models.DownloadResponse, error) {
			return &models.DownloadResponse{Content: "%%%not-base64"}, nil
		},
	}
	c := newTestController(vault, sess)

	_, err := c.Download(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestDelete_NotSupported(t *testing.T) {
	sess := newAuthedSession("u1")
	vault := &fakeVault{
		list: func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
			return listOf("keep.txt"), nil
		},
	}
	c := newTestController(vault, sess)
	require.NoError(t, c.Refresh(context.Background()))

	err := c.Delete(context.Background(), "keep.txt")
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.Equal(t, []string{"keep.txt"}, names(c.Files()))
}

func TestToggleStar_SurvivesRefresh(t *testing.T) {
	sess := newAuthedSession("u1")
	vault := &fakeVault{
		list: func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
			return listOf("a.txt", "b.txt"), nil
		},
	}
	c := newTestController(vault, sess)
	require.NoError(t, c.Refresh(context.Background()))

	starred, err := c.ToggleStar("a.txt")
	require.NoError(t, err)
	assert.True(t, starred)

	require.NoError(t, c.Refresh(context.Background()))
	rec, ok := c.State().Find("a.txt")
	require.True(t, ok)
	assert.True(t, rec.Starred)

	_, err = c.ToggleStar("missing.txt")
	assert.Error(t, err)
}

func TestSessionEndCancelsInFlight(t *testing.T) {
	sess := newAuthedSession("u1")
	started := make(chan struct{})
	vault := &fakeVault{
		list: func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	c := newTestController(vault, sess)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Refresh(context.Background()) }()
	<-started

	sess.mu.Lock()
	sess.cancel()
	sess.mu.Unlock()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, api.IsAuthError(err))
	case <-time.After(time.Second):
		t.Fatal("refresh did not abort when the session ended")
	}
}

// accountsAPI logs in any known email and rejects everything else.
type accountsAPI struct {
	ids map[string]string
}

func (a *accountsAPI) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	id, ok := a.ids[email]
	if !ok {
		return nil, &api.APIError{StatusCode: 401, Message: "Invalid credentials"}
	}
	return &models.AuthResponse{
		Status: "success",
		Token:  "tok-" + id,
		User:   &models.User{UserID: id, Email: email},
	}, nil
}

func (a *accountsAPI) Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	return nil, errors.New("signup not available")
}

func (a *accountsAPI) Me(ctx context.Context) (*models.MeResponse, error) {
	return nil, errors.New("me not available")
}

func (a *accountsAPI) RefreshToken(ctx context.Context, token string) (*models.RefreshResponse, error) {
	return nil, errors.New("refresh not available")
}

func newSessionController(t *testing.T) (*Controller, *session.Manager) {
	t.Helper()
	bus := events.NewEventBus(1)
	t.Cleanup(bus.Close)

	mgr := session.NewManager(&accountsAPI{ids: map[string]string{
		"alice@example.com": "alice",
		"bob@example.com":   "bob",
	}}, store.NewMemoryStore(), bus, nil)

	vault := &fakeVault{
		list: func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
			return listOf(userPath + "-secret.txt"), nil
		},
	}
	c := NewController(vault, mgr, nil, bus, nil)
	c.Watch()
	t.Cleanup(c.Close)
	return c, mgr
}

func TestWatch_LogoutClearsListBeforeReturning(t *testing.T) {
	c, mgr := newSessionController(t)
	ctx := context.Background()

	_, err := mgr.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, c.Refresh(ctx))
	require.Equal(t, []string{"alice-secret.txt"}, names(c.Files()))

	mgr.Logout()
	assert.Empty(t, c.Files(), "list must be empty as soon as Logout returns")
}

func TestWatch_NextLoginKeepsItsOwnList(t *testing.T) {
	c, mgr := newSessionController(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, err := mgr.Login(ctx, "alice@example.com", "secret1")
		require.NoError(t, err)
		require.NoError(t, c.Refresh(ctx))

		mgr.Logout()

		_, err = mgr.Login(ctx, "bob@example.com", "secret1")
		require.NoError(t, err)
		require.NoError(t, c.Refresh(ctx))
		require.Equal(t, []string{"bob-secret.txt"}, names(c.Files()), "iteration %d", i)

		mgr.Logout()
	}

	_, err := mgr.Login(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, c.Refresh(ctx))
	assert.Never(t, func() bool { return len(c.Files()) == 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestWatch_ExpiryClearsList(t *testing.T) {
	sess := newAuthedSession("u1")
	vault := &fakeVault{
		list: func(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
			return listOf("a.txt"), nil
		},
	}
	c := newTestController(vault, sess)
	c.Watch()

	require.NoError(t, c.Refresh(context.Background()))
	require.Equal(t, 1, c.State().Count())

	sess.Expire()
	assert.Zero(t, c.State().Count())
}

func TestWatch_CloseStopsClearing(t *testing.T) {
	c, mgr := newSessionController(t)
	ctx := context.Background()

	_, err := mgr.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, c.Refresh(ctx))

	c.Close()
	mgr.Logout()
	assert.Equal(t, []string{"alice-secret.txt"}, names(c.Files()))
}

func TestBackupRestore(t *testing.T) {
	sess := newAuthedSession("u1")
	vault := &fakeVault{
		backup: func(ctx context.Context, name string) (*models.BackupResponse, error) {
			return &models.BackupResponse{Status: "success", BackupName: "nightly"}, nil
		},
		restore: func(ctx context.Context, name string) (*models.RestoreResponse, error) {
			if name == "" {
				return nil, api.ErrBackupNameRequired
			}
			return &models.RestoreResponse{Status: "success", RestoredCount: 2}, nil
		},
	}
	c := newTestController(vault, sess)

	b, err := c.Backup(context.Background(), "nightly")
	require.NoError(t, err)
	assert.Equal(t, "nightly", b.BackupName)

	_, err = c.Restore(context.Background(), "")
	assert.ErrorIs(t, err, api.ErrBackupNameRequired)

	r, err := c.Restore(context.Background(), "nightly")
	require.NoError(t, err)
	assert.Equal(t, 2, r.RestoredCount)
	assert.EqualValues(t, 1, vault.listCalls.Load(), "restore refreshes the list")
}

func TestDataURI(t *testing.T) {
	uri := DataURI("report.pdf", []byte("%PDF"))
	assert.True(t, strings.HasPrefix(uri, "data:application/pdf;base64,"))

	uri = DataURI("blob", []byte{0x00})
	assert.Equal(t, "data:application/octet-stream;base64,AA==", uri)
}
