package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// maxResponseBytes caps how much of a gateway reply is read.
const maxResponseBytes = 1 << 20

// HTTPGateway calls the collection gateway over HTTPS.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway creates a client for the gateway at baseURL. timeout
// bounds each individual call.
func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Deposit(ctx context.Context, req DepositRequest) (*DepositResponse, error) {
	var resp DepositResponse
	if err := g.do(ctx, http.MethodPost, "/api/deposit", req, &resp); err != nil {
		return nil, errors.Wrap(err, "deposit request")
	}
	return &resp, nil
}

func (g *HTTPGateway) RequestStatus(ctx context.Context, internalReference string) (*StatusResponse, error) {
	path := "/api/request-status?internal_reference=" + url.QueryEscape(internalReference)
	var resp StatusResponse
	if err := g.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "status request")
	}
	return &resp, nil
}

func (g *HTTPGateway) Withdraw(ctx context.Context, req WithdrawRequest) (*WithdrawResponse, error) {
	var resp WithdrawResponse
	if err := g.do(ctx, http.MethodPost, "/api/withdraw", req, &resp); err != nil {
		return nil, errors.Wrap(err, "withdraw request")
	}
	return &resp, nil
}

// do sends body as JSON and decodes the reply into out. The gateway reports
// business failures inside a JSON body, so non-2xx replies that still carry
// JSON are decoded rather than treated as transport errors.
func (g *HTTPGateway) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode >= 300 {
			return fmt.Errorf("gateway returned HTTP %d", resp.StatusCode)
		}
		return errors.Wrap(err, "decode response")
	}
	return nil
}
