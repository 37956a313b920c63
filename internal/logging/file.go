package logging

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cloudvault/cloudvault-cli/internal/constants"
)

// NewRotatingFile returns a size-rotated log file writer. Entries are
// written as zerolog JSON so they can be grepped or shipped as-is.
func NewRotatingFile(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    constants.LogMaxSizeMB,
		MaxBackups: constants.LogMaxBackups,
		MaxAge:     constants.LogMaxAgeDays,
		Compress:   true,
	}
}
