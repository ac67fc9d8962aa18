package httputil

import (
	"net/http"
	"time"
)

// DownloadTimeout bounds a single dataset download attempt. Retrying is the
// caller's concern, so this stays generous enough for a full CSV transfer.
const DownloadTimeout = time.Minute

// NewClient returns an HTTP client configured for dataset downloads.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: DownloadTimeout,
	}
}
