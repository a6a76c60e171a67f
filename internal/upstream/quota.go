package upstream

import (
	"net/http"
	"strconv"
	"time"

	"latebird/internal/types"
)

// Provider rate-limit headers (Twitter API v1.1 casing; header lookup is
// case-insensitive).
const (
	headerQuotaLimit     = "X-Rate-Limit-Limit"
	headerQuotaRemaining = "X-Rate-Limit-Remaining"
	headerQuotaReset     = "X-Rate-Limit-Reset"
)

// quotaFromResponse parses the provider's rate-limit headers into a
// QuotaSnapshot. Returns nil when the response carries no quota information
// (the provider omits the headers on some endpoints and error responses).
func quotaFromResponse(resp *http.Response) *types.QuotaSnapshot {
	if resp == nil {
		return nil
	}

	remainingRaw := resp.Header.Get(headerQuotaRemaining)
	resetRaw := resp.Header.Get(headerQuotaReset)
	if remainingRaw == "" || resetRaw == "" {
		return nil
	}

	remaining, err := strconv.Atoi(remainingRaw)
	if err != nil {
		return nil
	}
	resetUnix, err := strconv.ParseInt(resetRaw, 10, 64)
	if err != nil {
		return nil
	}

	q := &types.QuotaSnapshot{
		Remaining: remaining,
		ResetAt:   time.Unix(resetUnix, 0).UTC(),
	}
	if limit, err := strconv.Atoi(resp.Header.Get(headerQuotaLimit)); err == nil {
		q.Limit = limit
	}
	return q
}
