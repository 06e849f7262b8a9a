package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/nfe-monitor/constants"
	"github.com/joseph-ayodele/nfe-monitor/internal/common"
)

// HTTPDispatcher POSTs payloads to the trigger endpoint.
type HTTPDispatcher struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewHTTPDispatcher(url string, client *http.Client, logger *slog.Logger) *HTTPDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	return &HTTPDispatcher{url: url, client: client, logger: logger}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, p Payload) (Receipt, error) {
	body, err := Encode(p)
	if err != nil {
		return Receipt{}, err
	}
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	status, err := d.send(ctx, reqID, body)
	rcpt := Receipt{Target: TargetHTTP, Status: constants.DispatchStatusSent, StatusCode: status, RequestID: reqID}
	return rcpt, err
}

func (d *HTTPDispatcher) send(ctx context.Context, reqID string, body []byte) (int, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		d.logger.Error("dispatch.http.build_request_error", "req_id", reqID, "error", err)
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	d.logger.Info("dispatch.http.request", "req_id", reqID, "url", d.url, "content_length", len(body))

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("dispatch.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return 0, fmt.Errorf("post trigger: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			d.logger.Warn("dispatch.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	d.logger.Info("dispatch.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return resp.StatusCode, fmt.Errorf("trigger returned non-2xx status: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
