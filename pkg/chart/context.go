package chart

import (
	"context"
	"net/http"
	"time"
)

// contextWithTimeout derives a bounded context from the request so a slow
// storage scan cannot pin a handler goroutine past its budget.
func contextWithTimeout(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeout)
}
