package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxErrorBody caps how much of a vendor error body is kept.
const maxErrorBody = 4096

// NewHTTPClient returns an http.Client bounded by timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Do executes req and decodes a JSON body into out when out is non-nil.
// Transport failures map to ErrBackendUnreachable and non-2xx responses to
// *RejectedError with the vendor body attached.
func Do(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return Unreachable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reject(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return DecodeBody(resp, out)
}

// DecodeBody reads the whole body before decoding it into out. A body cut
// short by a timeout or reset is ErrBackendUnreachable; only a complete but
// malformed body is a *RejectedError.
func DecodeBody(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Unreachable(fmt.Errorf("read body: %w", err))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RejectedError{Status: resp.StatusCode, Body: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}

// Reject reads the body of a non-success response into a *RejectedError.
func Reject(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &RejectedError{Status: resp.StatusCode, Body: string(body)}
}
