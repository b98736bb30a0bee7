package netx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/chunkvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadFromPresignedURL(t *testing.T) {
	t.Run("success 200 OK", func(t *testing.T) {
		var gotMethod, gotQuery string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotQuery = r.URL.RawQuery
			_, _ = w.Write([]byte("ciphertext"))
		}))
		defer ts.Close()

		b, err := DownloadFromPresignedURL(context.Background(), ts.Client(), ts.URL+"/chunks/x?X-Amz-Signature=abc")
		require.NoError(t, err)
		assert.Equal(t, "ciphertext", string(b))
		assert.Equal(t, http.MethodGet, gotMethod)
		assert.Equal(t, "X-Amz-Signature=abc", gotQuery)
	})

	statusCases := []struct {
		name   string
		status int
		want   error
	}{
		{"404 -> reference not found", http.StatusNotFound, common.ErrReferenceNotFound},
		{"403 -> rejected", http.StatusForbidden, common.ErrBackendRejected},
		{"503 -> unavailable", http.StatusServiceUnavailable, common.ErrBackendUnavailable},
	}
	for _, tc := range statusCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte("<Error/>"))
			}))
			defer ts.Close()

			_, err := DownloadFromPresignedURL(context.Background(), nil, ts.URL)
			assert.ErrorIs(t, err, tc.want)
			assert.Contains(t, err.Error(), "<Error/>")
		})
	}

	t.Run("transport error -> unavailable", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := ts.URL
		ts.Close()

		_, err := DownloadFromPresignedURL(context.Background(), nil, url)
		assert.ErrorIs(t, err, common.ErrBackendUnavailable)
	})

	t.Run("deadline -> unavailable", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer ts.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := DownloadFromPresignedURL(ctx, nil, ts.URL)
		assert.ErrorIs(t, err, common.ErrBackendUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := DownloadFromPresignedURL(context.Background(), nil, "://nope")
		assert.Error(t, err)
	})
}
