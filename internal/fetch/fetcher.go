// Package fetch downloads and validates server binary artifacts.
//
// Distribution providers are inconsistent about content types: some return
// a valid jar with Content-Type: application/json, others return a JSON
// error document with a 200 status. The fetcher sniffs the leading bytes
// of every suspicious response and only trusts payloads that carry the
// ZIP local-file-header magic.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/modpit/craftd/internal/logging"
)

const (
	// minArtifactSize is the floor below which no real server jar exists.
	minArtifactSize = 5 * 1024

	// peekSize is how much of a suspicious body is read for sniffing.
	peekSize = 1024

	copyChunkSize = 64 * 1024
)

// zipMagic is the leading two bytes of a ZIP local file header ("PK").
var zipMagic = []byte{0x50, 0x4B}

// Artifact describes a verified download on disk.
type Artifact struct {
	URL    string
	Path   string
	Size   int64
	SHA256 string
	Build  string
}

// Fetcher streams artifacts over HTTP with validation.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient overrides the HTTP client, primarily for tests.
func WithClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithUserAgent overrides the User-Agent header sent to providers.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithTimeout sets the overall request ceiling.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

// NewFetcher creates a Fetcher with a multi-minute overall timeout suited
// to large artifact downloads.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
		userAgent: "craftd/1.0",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url to destination, validates it as a binary archive and
// returns the verified Artifact. On failure a *DownloadError classifies the
// cause. Validation failures after the body has been written still leave
// the file at destination; the caller owns cleanup.
func (f *Fetcher) Fetch(ctx context.Context, url, destination string) (*Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{Kind: KindTransport, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/java-archive, application/zip, application/octet-stream")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &DownloadError{Kind: KindTransport, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &DownloadError{Kind: KindRateLimited, URL: url, Message: resp.Status}
		}
		return nil, &DownloadError{Kind: KindTransport, URL: url, Message: resp.Status}
	}

	var peeked []byte
	if looksTextual(resp.Header) && !claimsBinaryFilename(resp.Header) {
		peeked, err = io.ReadAll(io.LimitReader(resp.Body, peekSize))
		if err != nil {
			return nil, &DownloadError{Kind: KindTransport, URL: url, Err: err}
		}

		if !hasZipMagic(peeked) {
			// A genuinely textual body. Try to surface the provider's
			// own error message.
			return nil, classifyTextualBody(url, peeked)
		}
		logging.L().Debug("accepting mislabeled binary response",
			"url", url,
			"content_type", resp.Header.Get("Content-Type"),
		)
	}

	size, err := f.writeBody(destination, peeked, resp.Body)
	if err != nil {
		return nil, &DownloadError{Kind: KindTransport, URL: url, Err: err}
	}

	if size < minArtifactSize {
		return nil, &DownloadError{
			Kind:    KindTooSmall,
			URL:     url,
			Message: fmt.Sprintf("%d bytes, need at least %d", size, minArtifactSize),
		}
	}

	if err := checkSignature(destination); err != nil {
		var dlErr *DownloadError
		if errors.As(err, &dlErr) {
			dlErr.URL = url
			return nil, dlErr
		}
		return nil, &DownloadError{Kind: KindTransport, URL: url, Err: err}
	}

	digest, _, err := ComputeSHA256(destination)
	if err != nil {
		return nil, &DownloadError{Kind: KindTransport, URL: url, Err: err}
	}

	logging.L().Info("artifact downloaded",
		"url", url,
		"path", destination,
		"size", size,
		"sha256", digest,
	)

	return &Artifact{
		URL:    url,
		Path:   destination,
		Size:   size,
		SHA256: digest,
	}, nil
}

// writeBody streams the response to a partial file next to destination,
// re-emitting any peeked prefix first so no bytes are lost, and renames it
// into place only once the full body has arrived. An aborted transfer
// never leaves a partial file under the final name.
func (f *Fetcher) writeBody(destination string, peeked []byte, body io.Reader) (int64, error) {
	partial := destination + ".partial"

	written, err := func() (int64, error) {
		out, err := os.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return 0, err
		}
		defer out.Close()

		var written int64
		if len(peeked) > 0 {
			n, err := out.Write(peeked)
			if err != nil {
				return int64(n), err
			}
			written += int64(n)
		}

		buf := make([]byte, copyChunkSize)
		n, err := io.CopyBuffer(out, body, buf)
		written += n
		if err != nil {
			return written, err
		}
		return written, out.Sync()
	}()
	if err != nil {
		os.Remove(partial)
		return written, err
	}

	if err := os.Rename(partial, destination); err != nil {
		os.Remove(partial)
		return written, err
	}
	return written, nil
}

func checkSignature(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	header := make([]byte, 2)
	if _, err := io.ReadFull(file, header); err != nil {
		return &DownloadError{Kind: KindBadSignature, Message: "file too short to carry a signature"}
	}
	if !hasZipMagic(header) {
		return &DownloadError{
			Kind:    KindBadSignature,
			Message: fmt.Sprintf("leading bytes %x are not an archive header", header),
		}
	}
	return nil
}

// ComputeSHA256 returns the hex digest and size of the file at path.
func ComputeSHA256(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

func hasZipMagic(data []byte) bool {
	return len(data) >= 2 && data[0] == zipMagic[0] && data[1] == zipMagic[1]
}

func looksTextual(header http.Header) bool {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case strings.Contains(mediaType, "json"):
		return true
	case strings.Contains(mediaType, "html"):
		return true
	case strings.Contains(mediaType, "xml"):
		return true
	}
	return false
}

// claimsBinaryFilename reports whether the Content-Disposition filename
// hints at an archive despite a textual content type.
func claimsBinaryFilename(header http.Header) bool {
	disposition := header.Get("Content-Disposition")
	if disposition == "" {
		return false
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return false
	}
	name := strings.ToLower(params["filename"])
	for _, ext := range []string{".jar", ".zip"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// classifyTextualBody turns a non-binary payload into a DownloadError,
// extracting the provider's message when the body parses as JSON.
func classifyTextualBody(url string, body []byte) *DownloadError {
	message := extractMessage(body)
	if message == "" {
		message = truncate(strings.TrimSpace(string(body)), 200)
	}

	lower := strings.ToLower(message)
	if strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate-limit") ||
		strings.Contains(lower, "too many requests") {
		return &DownloadError{Kind: KindRateLimited, URL: url, Message: message}
	}

	return &DownloadError{Kind: KindNotBinary, URL: url, Message: message}
}

func extractMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"error", "message", "detail", "reason"} {
		if value, ok := payload[key].(string); ok && value != "" {
			return truncate(value, 200)
		}
	}
	return ""
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
