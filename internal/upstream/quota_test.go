package upstream

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latebird/internal/types"
)

func assertAnError() error { return errors.New("boom") }

func requireAppError(t *testing.T, err error) *types.AppError {
	t.Helper()
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr
}

func respWithHeaders(h map[string]string) *http.Response {
	header := http.Header{}
	for k, v := range h {
		header.Set(k, v)
	}
	return &http.Response{Header: header}
}

func TestQuotaFromResponse_ParsesAllHeaders(t *testing.T) {
	resp := respWithHeaders(map[string]string{
		"X-Rate-Limit-Limit":     "15",
		"X-Rate-Limit-Remaining": "3",
		"X-Rate-Limit-Reset":     "1767225600",
	})

	q := quotaFromResponse(resp)
	require.NotNil(t, q)
	assert.Equal(t, 15, q.Limit)
	assert.Equal(t, 3, q.Remaining)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), q.ResetAt)
}

func TestQuotaFromResponse_NilWithoutHeaders(t *testing.T) {
	assert.Nil(t, quotaFromResponse(nil))
	assert.Nil(t, quotaFromResponse(respWithHeaders(nil)))
	assert.Nil(t, quotaFromResponse(respWithHeaders(map[string]string{
		"X-Rate-Limit-Remaining": "3",
	})), "reset header is required")
}

func TestQuotaFromResponse_NilOnMalformedValues(t *testing.T) {
	resp := respWithHeaders(map[string]string{
		"X-Rate-Limit-Remaining": "soon",
		"X-Rate-Limit-Reset":     "1767225600",
	})
	assert.Nil(t, quotaFromResponse(resp))
}

func TestMapProviderError_RateLimitStatus(t *testing.T) {
	err := mapProviderError(assertAnError(), &http.Response{StatusCode: http.StatusTooManyRequests})
	appErr := requireAppError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, appErr.HTTPStatus())
}

func TestMapProviderError_ClientRejection(t *testing.T) {
	err := mapProviderError(assertAnError(), &http.Response{StatusCode: http.StatusForbidden})
	appErr := requireAppError(t, err)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus())
	assert.Equal(t, "upstream_rejected", string(appErr.Code))
}

func TestMapProviderError_TransportFailure(t *testing.T) {
	err := mapProviderError(assertAnError(), nil)
	appErr := requireAppError(t, err)
	assert.Equal(t, "upstream_unavailable", string(appErr.Code))
}
