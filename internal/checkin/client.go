// Package checkin is the HTTP client for the remote check-in API. It resolves
// the wire response into a tagged Individual/Family result at the boundary and
// classifies failures as either definitive rejections or network faults.
package checkin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNetworkUnavailable marks transport-level failures and timeouts: the
// request may never have reached the server, so the scan is still deliverable
// later.
var ErrNetworkUnavailable = errors.New("network unavailable")

// RejectionError is a well-formed refusal from the server (unknown barcode,
// already checked in). Retrying it would only repeat a guaranteed failure.
type RejectionError struct {
	StatusCode int
	Detail     string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("check-in rejected (%d): %s", e.StatusCode, e.Detail)
}

// ResultKind tags a successful check-in response.
type ResultKind int

const (
	Individual ResultKind = iota
	Family
)

// Result is a resolved check-in outcome. Kind decides which of the remaining
// fields is meaningful.
type Result struct {
	Kind        ResultKind
	MemberName  string
	MemberCount int
}

// Label renders the operator-facing line for the outcome.
func (r *Result) Label() string {
	if r.Kind == Family {
		return fmt.Sprintf("Family check-in: %d members", r.MemberCount)
	}
	return fmt.Sprintf("%s checked in", r.MemberName)
}

type Client struct {
	baseURL    string
	healthPath string
	http       *http.Client
	logger     *zerolog.Logger
}

func NewClient(baseURL, healthPath string, timeout time.Duration, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		healthPath: healthPath,
		http:       &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// checkinResponse is the raw shape of a successful /checkin-by-barcode reply.
type checkinResponse struct {
	Message       string `json:"message"`
	FamilyCheckin bool   `json:"family_checkin"`
	MemberCount   int    `json:"member_count"`
	MemberName    string `json:"member_name"`
}

// CheckIn delivers one barcode to the server.
func (c *Client) CheckIn(ctx context.Context, barcode string) (*Result, error) {
	payload, err := json.Marshal(map[string]string{"barcode": barcode})
	if err != nil {
		return nil, fmt.Errorf("encode check-in request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkin-by-barcode", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build check-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	// 5xx is not a decision about the barcode; treat like a transient fault.
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: server returned %d", ErrNetworkUnavailable, resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var rej struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&rej); err != nil || rej.Detail == "" {
			rej.Detail = http.StatusText(resp.StatusCode)
		}
		return nil, &RejectionError{StatusCode: resp.StatusCode, Detail: rej.Detail}
	}

	var wire checkinResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode check-in response: %w", err)
	}

	result := &Result{Kind: Individual, MemberName: wire.MemberName}
	if wire.FamilyCheckin {
		result = &Result{Kind: Family, MemberCount: wire.MemberCount}
	}

	c.logger.Debug().Str("barcode", barcode).Str("label", result.Label()).Msg("check-in delivered")
	return result, nil
}

// Health probes the server health endpoint. Used by the connectivity monitor.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.healthPath, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrNetworkUnavailable, resp.StatusCode)
	}
	return nil
}

// IsNetworkError reports whether err represents a transient delivery failure.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable)
}

// IsRejection reports whether err is a definitive server rejection, and
// returns it when so.
func IsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
