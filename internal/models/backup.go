package models

import "encoding/json"

// BackupRequest is the body of POST /backup and POST /restore.
type BackupRequest struct {
	BackupName string `json:"backup_name,omitempty"`
}

// BackupResponse is returned by POST /backup. The manifest shape is server-defined.
type BackupResponse struct {
	Status     string          `json:"status"`
	BackupName string          `json:"backup_name"`
	Manifest   json.RawMessage `json:"manifest,omitempty"`
}

// RestoreResponse is returned by POST /restore.
type RestoreResponse struct {
	Status        string            `json:"status"`
	RestoredCount int               `json:"restored_count"`
	FailedCount   int               `json:"failed_count"`
	RestoredFiles []json.RawMessage `json:"restored_files,omitempty"`
	FailedFiles   []json.RawMessage `json:"failed_files,omitempty"`
}
