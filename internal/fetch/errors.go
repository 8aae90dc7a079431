package fetch

import "fmt"

// ErrorKind classifies why a download was rejected.
type ErrorKind string

const (
	// KindRateLimited means the provider refused the request due to rate limiting.
	KindRateLimited ErrorKind = "rate_limited"
	// KindNotBinary means the provider returned a textual payload instead of an archive.
	KindNotBinary ErrorKind = "not_binary"
	// KindTooSmall means the downloaded file is below the minimum plausible size.
	KindTooSmall ErrorKind = "too_small"
	// KindBadSignature means the downloaded file does not start with the archive magic.
	KindBadSignature ErrorKind = "bad_signature"
	// KindTransport means the request itself failed (DNS, TLS, timeout, non-2xx, disk).
	KindTransport ErrorKind = "transport"
)

// DownloadError is the typed failure returned by Fetcher.Fetch.
type DownloadError struct {
	Kind    ErrorKind
	URL     string
	Message string
	Err     error
}

func (e *DownloadError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("download %s: %s: %s", e.URL, e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("download %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("download %s: %s", e.URL, e.Kind)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
