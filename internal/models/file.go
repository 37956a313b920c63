package models

import (
	"path"
	"strings"
	"time"

	"github.com/cloudvault/cloudvault-cli/internal/constants"
)

// EntryKind tags a FileRecord as a regular file or a folder.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindFolder
)

func (k EntryKind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// RemoteFile is a single entry of the /list response.
// Depending on the storage backend the server fills filename, or name+path.
type RemoteFile struct {
	Filename   string `json:"filename,omitempty"`
	Name       string `json:"name,omitempty"`
	Path       string `json:"path,omitempty"`
	Size       int64  `json:"size"`
	UploadedAt string `json:"uploaded_at,omitempty"`
	Created    string `json:"created,omitempty"`
	Updated    string `json:"updated,omitempty"`
}

// FileRecord is the client-side view of a server-known file.
// Folders are records whose last segment is the folder marker; Name keeps
// the full "<folder>/.folder" key so prefix lookups keep working.
type FileRecord struct {
	Name       string
	Path       string // server key for download, empty when the server did not send one
	SizeBytes  int64
	UploadedAt string
	Starred    bool
	Kind       EntryKind
}

// IsFolder reports whether the record is a folder marker.
func (r FileRecord) IsFolder() bool {
	return r.Kind == KindFolder
}

// FolderPath returns the folder a marker record stands for ("Reports" for
// "Reports/.folder"). Empty for regular files.
func (r FileRecord) FolderPath() string {
	if r.Kind != KindFolder {
		return ""
	}
	return strings.TrimSuffix(r.Name, "/"+constants.FolderMarker)
}

// DisplayName is the last path element of a file, or the folder path with a trailing slash.
func (r FileRecord) DisplayName() string {
	if r.Kind == KindFolder {
		return r.FolderPath() + "/"
	}
	return r.Name
}

// RemoteKey is the identifier the download endpoint expects.
func (r FileRecord) RemoteKey() string {
	if r.Path != "" {
		return r.Path
	}
	return r.Name
}

// UploadTime parses UploadedAt. The server emits ISO-8601 with or without zone.
func (r FileRecord) UploadTime() (time.Time, bool) {
	if r.UploadedAt == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, r.UploadedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsFolderMarker reports whether name ends in the folder marker segment.
func IsFolderMarker(name string) bool {
	return path.Base(name) == constants.FolderMarker && strings.Contains(name, "/")
}

// ToRecord maps a wire entry to a FileRecord.
// userKey is the namespace prefix the server prepends to paths.
func (f RemoteFile) ToRecord(userKey string) FileRecord {
	name := f.Filename
	if name == "" && f.Path != "" {
		name = strings.TrimPrefix(f.Path, userKey+"/")
	}
	if name == "" {
		name = f.Name
	}

	uploaded := f.UploadedAt
	if uploaded == "" {
		uploaded = f.Updated
	}
	if uploaded == "" {
		uploaded = f.Created
	}

	size := f.Size
	if size < 0 {
		size = 0
	}

	kind := KindFile
	if IsFolderMarker(name) {
		kind = KindFolder
	}

	return FileRecord{
		Name:       name,
		Path:       f.Path,
		SizeBytes:  size,
		UploadedAt: uploaded,
		Kind:       kind,
	}
}

// ListFilesRequest is the body of POST /list.
type ListFilesRequest struct {
	UserPath string `json:"user_path"`
}

// ListFilesResponse is the body returned by POST /list.
type ListFilesResponse struct {
	Status    string        `json:"status"`
	UserPath  string        `json:"user_path"`
	Files     []RemoteFile  `json:"files"`
	FileCount int           `json:"file_count"`
	Storage   *StorageQuota `json:"storage,omitempty"`
}

// UploadRequest is the body of POST /upload.
type UploadRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// UploadResponse is the body returned by POST /upload.
type UploadResponse struct {
	Status  string        `json:"status"`
	File    *RemoteFile   `json:"file,omitempty"`
	Storage *StorageQuota `json:"storage,omitempty"`
}

// DownloadRequest is the body of POST /download.
type DownloadRequest struct {
	Filename string `json:"filename"`
}

// DownloadResponse is the body returned by POST /download.
type DownloadResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
}
