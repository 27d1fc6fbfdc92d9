package render

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Request is the envelope the pool writes to a worker's stdin. One request
// per worker invocation.
type Request struct {
	Protocol   int       `json:"protocol"`
	JobID      string    `json:"job_id"`
	Template   string    `json:"template"`
	Bindings   Bindings  `json:"bindings"`
	DeadlineAt time.Time `json:"deadline_at"`
}

// Response is the envelope a worker writes to stdout.
type Response struct {
	Status string `json:"status"` // ok | error
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// EncodeRequest serializes a Request to JSON and writes it to w.
func EncodeRequest(w io.Writer, req *Request) error {
	if req.Protocol != 1 {
		return fmt.Errorf("unsupported protocol version: %d", req.Protocol)
	}

	encoder := json.NewEncoder(w)
	if err := encoder.Encode(req); err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return nil
}

// DecodeRequest reads and deserializes a Request from r.
func DecodeRequest(r io.Reader) (*Request, error) {
	var req Request

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if req.Protocol != 1 {
		return nil, fmt.Errorf("unsupported protocol version: %d", req.Protocol)
	}
	return &req, nil
}

// encodeResponse serializes a Response to JSON and writes it to w.
func encodeResponse(w io.Writer, resp *Response) error {
	encoder := json.NewEncoder(w)
	if err := encoder.Encode(resp); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}

// DecodeResponse reads and deserializes a Response from r, validating the
// envelope.
func DecodeResponse(r io.Reader) (*Response, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("worker produced no output on stdout")
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("worker output is not valid JSON: %w", err)
	}

	if resp.Status != "ok" && resp.Status != "error" {
		return nil, fmt.Errorf("invalid status value: %q (must be 'ok' or 'error')", resp.Status)
	}
	if resp.Status == "error" && resp.Error == "" {
		return nil, fmt.Errorf("response has status=error but no error message")
	}
	return &resp, nil
}
