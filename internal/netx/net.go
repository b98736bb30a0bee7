// Package netx fetches objects through presigned HTTP URLs and maps HTTP
// outcomes onto the blob store error taxonomy.
package netx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/chunkvault/internal/common"
)

// maxErrorBody bounds how much of an error response body is kept for the
// error message.
const maxErrorBody = 512

// DownloadFromPresignedURL performs a GET on a presigned URL and returns the
// response body.
//
// Outcome mapping:
//   - 200: body returned
//   - 404: common.ErrReferenceNotFound
//   - other 4xx: common.ErrBackendRejected
//   - 5xx and transport errors: common.ErrBackendUnavailable
func DownloadFromPresignedURL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", common.ErrBackendUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: download failed: %s; body: %s", statusError(resp.StatusCode), resp.Status, string(b))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", common.ErrBackendUnavailable, err)
	}
	return body, nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusNotFound:
		return common.ErrReferenceNotFound
	case code >= 500:
		return common.ErrBackendUnavailable
	default:
		return common.ErrBackendRejected
	}
}
