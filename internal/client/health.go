package client

import (
	"context"
	"net/http"
)

// Healthy probes the backend liveness endpoint. Best-effort by design: any
// failure, of any kind, reads as "not healthy".
func (c *Client) Healthy(ctx context.Context) bool {
	req := Request{Method: http.MethodGet, Path: "/system/health", SkipAuth: true}
	return c.Do(ctx, req, nil) == nil
}
