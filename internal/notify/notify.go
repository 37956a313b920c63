// Package notify sends desktop notifications when long-running vault
// operations finish. It uses github.com/gen2brain/beeep for cross-platform
// notification support.
package notify

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/cloudvault/cloudvault-cli/internal/logging"
)

const appTitle = "Cloud Vault"

// Notifier handles desktop notifications.
type Notifier struct {
	logger  *logging.Logger
	enabled bool
	send    func(title, message string) error
	mu      sync.RWMutex
}

// NewNotifier creates a notifier. logger may be nil.
func NewNotifier(enabled bool, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Notifier{
		logger:  logger,
		enabled: enabled,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// BatchComplete reports the outcome of an upload batch.
func (n *Notifier) BatchComplete(total, succeeded, failed int, elapsed time.Duration) {
	if !n.IsEnabled() || total == 0 {
		return
	}

	title := "Upload Complete"
	if failed > 0 {
		title = "Upload Finished With Errors"
	}
	message := fmt.Sprintf("%d of %d file(s) uploaded in %s.", succeeded, total, elapsed.Round(time.Second))
	if failed > 0 {
		message += fmt.Sprintf("\n%d failed.", failed)
	}

	if err := n.send(title, message); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send batch notification")
	}
}

// MirrorComplete reports the outcome of a mirror run.
func (n *Notifier) MirrorComplete(destination string, copied, failed int) {
	if !n.IsEnabled() {
		return
	}

	message := fmt.Sprintf("%d file(s) copied to:\n%s", copied, shortenPath(destination))
	if failed > 0 {
		message += fmt.Sprintf("\n%d failed.", failed)
	}

	if err := n.send("Mirror Complete", message); err != nil {
		n.logger.Warn().Err(err).Str("destination", destination).Msg("Failed to send mirror notification")
	}
}

// SessionExpired tells the user the server rejected the stored token.
func (n *Notifier) SessionExpired() {
	if !n.IsEnabled() {
		return
	}

	if err := beeep.Alert(appTitle, "Your session has expired. Please log in again.", ""); err != nil {
		if err := n.send(appTitle, "Your session has expired. Please log in again."); err != nil {
			n.logger.Error().Err(err).Msg("Failed to send session notification")
		}
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// shortenPath abbreviates a long path or URL for display in notifications.
func shortenPath(path string) string {
	const maxLen = 60

	if len(path) <= maxLen {
		return path
	}

	_, file := filepath.Split(path)
	parentDir := filepath.Base(filepath.Dir(path))
	short := filepath.Join("...", parentDir, file)

	if len(short) > maxLen {
		return truncate("..."+path[len(path)-(maxLen-3):], maxLen)
	}
	return short
}
