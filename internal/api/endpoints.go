package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/cloudvault/cloudvault-cli/internal/models"
)

// ErrBackupNameRequired is returned by Restore without a backup name.
var ErrBackupNameRequired = errors.New("Backup name is required")

// Health checks that the vault is reachable. Network failures are retried
// up to health_retries times.
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	var out models.HealthResponse
	if err := c.do(ctx, c.healthClient, nethttp.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Signup creates an account.
func (c *Client) Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.Do(ctx, nethttp.MethodPost, "/auth/signup", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.Do(ctx, nethttp.MethodPost, "/auth/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me validates the current token and returns the user it belongs to.
func (c *Client) Me(ctx context.Context) (*models.MeResponse, error) {
	var out models.MeResponse
	if err := c.Do(ctx, nethttp.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshToken exchanges a refresh token for a new bearer token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*models.RefreshResponse, error) {
	var out models.RefreshResponse
	req := models.RefreshRequest{RefreshToken: refreshToken}
	if err := c.Do(ctx, nethttp.MethodPost, "/auth/refresh", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListFiles returns the files stored under userPath.
func (c *Client) ListFiles(ctx context.Context, userPath string) (*models.ListFilesResponse, error) {
	var out models.ListFilesResponse
	req := models.ListFilesRequest{UserPath: userPath}
	if err := c.Do(ctx, nethttp.MethodPost, "/list", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload stores content under filename. Empty content is valid.
func (c *Client) Upload(ctx context.Context, filename string, content []byte) (*models.UploadResponse, error) {
	var out models.UploadResponse
	req := models.UploadRequest{
		Filename: filename,
		Content:  base64.StdEncoding.EncodeToString(content),
		Encoding: "base64",
	}
	if err := c.Do(ctx, nethttp.MethodPost, "/upload", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download fetches a file by its server key. Content is still base64.
func (c *Client) Download(ctx context.Context, key string) (*models.DownloadResponse, error) {
	var out models.DownloadResponse
	req := models.DownloadRequest{Filename: key}
	if err := c.Do(ctx, nethttp.MethodPost, "/download", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Backup snapshots the user's files. An empty name lets the server pick one.
func (c *Client) Backup(ctx context.Context, name string) (*models.BackupResponse, error) {
	var out models.BackupResponse
	req := models.BackupRequest{BackupName: name}
	if err := c.Do(ctx, nethttp.MethodPost, "/backup", req, &out); err != nil {
		return nil, fmt.Errorf("backup failed: %w", err)
	}
	return &out, nil
}

// Restore copies a named backup back into the user's files.
func (c *Client) Restore(ctx context.Context, name string) (*models.RestoreResponse, error) {
	if name == "" {
		return nil, ErrBackupNameRequired
	}
	var out models.RestoreResponse
	req := models.BackupRequest{BackupName: name}
	if err := c.Do(ctx, nethttp.MethodPost, "/restore", req, &out); err != nil {
		return nil, fmt.Errorf("restore failed: %w", err)
	}
	return &out, nil
}
