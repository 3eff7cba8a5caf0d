package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"vantage/internal/credentials"
	"vantage/pkg/apierr"
)

// ProgressFunc receives upload progress as a percentage in [0,100].
type ProgressFunc func(percent float64)

// Upload sends a file as multipart form content with optional extra fields,
// reporting fractional progress. Auth attachment, refresh-and-replay, and
// transient retry follow the same rules as JSON requests; progress restarts
// from zero on each retry attempt.
func (c *Client) Upload(ctx context.Context, path, fieldName, fileName string, content io.Reader, fields map[string]string, progress ProgressFunc, out any, opts ...RequestOption) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(fieldName, fileName)
	if err != nil {
		return &apierr.Error{Kind: apierr.KindClient, Code: "ENCODE_ERROR", Message: "could not build multipart body", Err: err}
	}
	if _, err := io.Copy(part, content); err != nil {
		return &apierr.Error{Kind: apierr.KindClient, Code: "ENCODE_ERROR", Message: "could not read upload content", Err: err}
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return &apierr.Error{Kind: apierr.KindClient, Code: "ENCODE_ERROR", Message: "could not write form field", Err: err}
		}
	}
	if err := writer.Close(); err != nil {
		return &apierr.Error{Kind: apierr.KindClient, Code: "ENCODE_ERROR", Message: "could not finalize multipart body", Err: err}
	}

	body := buf.Bytes()
	req := build(http.MethodPost, path, nil, opts)
	requestID := uuid.NewString()

	attempt := 0
	for {
		err := c.onceMultipart(ctx, req, body, writer.FormDataContentType(), requestID, progress, out)
		if err == nil {
			c.metrics.observeRequest(req.Method, "ok")
			return nil
		}

		var apiErr *apierr.Error
		if !errors.As(err, &apiErr) {
			apiErr = apierr.FromTransport(err)
		}

		if apiErr.Kind == apierr.KindAuth && !req.SkipAuth && !req.retriedForAuth {
			c.metrics.authFailures.Inc()
			if refreshErr := c.refresh(ctx); refreshErr != nil {
				c.metrics.observeRequest(req.Method, "refresh_failed")
				return refreshErr
			}
			replay := req
			replay.retriedForAuth = true
			req = replay
			continue
		}

		if apierr.Retryable(apiErr) && attempt < c.maxRetries {
			delay := backoffDelay(attempt)
			attempt++
			c.metrics.retries.Inc()
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				return apierr.FromTransport(sleepErr)
			}
			continue
		}

		c.metrics.observeRequest(req.Method, string(apiErr.Kind))
		return apiErr
	}
}

func (c *Client) onceMultipart(ctx context.Context, req Request, body []byte, contentType, requestID string, progress ProgressFunc, out any) error {
	reader := &progressReader{
		r:        bytes.NewReader(body),
		total:    int64(len(body)),
		progress: progress,
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, reader)
	if err != nil {
		return &apierr.Error{Kind: apierr.KindClient, Code: "BAD_REQUEST", Message: "could not build request", Err: err}
	}
	httpReq.ContentLength = int64(len(body))
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerRequestID, requestID)
	httpReq.Header.Set(headerClientVersion, c.clientVersion)
	httpReq.Header.Set(headerClientPlatform, c.platform)

	if !req.SkipAuth {
		if pair, err := c.creds.Load(ctx); err == nil {
			httpReq.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		} else if !errors.Is(err, credentials.ErrNoCredentials) {
			c.logger.WarnContext(ctx, "could not load credentials", "error", err)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return apierr.FromTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.FromTransport(fmt.Errorf("reading response body: %w", err))
	}

	if resp.StatusCode >= 400 {
		return apierr.FromResponse(resp.StatusCode, respBody)
	}
	return decodeEnvelope(respBody, out)
}

// progressReader reports cumulative bytes read as a percentage of the total.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.progress != nil && p.total > 0 {
		p.read += int64(n)
		p.progress(float64(p.read) / float64(p.total) * 100)
	}
	return n, err
}
