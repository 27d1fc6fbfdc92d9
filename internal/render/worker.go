package render

import (
	"errors"
	"fmt"
	"io"
)

// RunWorker is the worker-process side of the execution pool: it decodes a
// single render request from stdin, evaluates it in the sandbox, and writes
// the response to stdout. The pool enforces the deadline from outside; the
// worker itself just renders and exits.
func RunWorker(stdin io.Reader, stdout io.Writer) error {
	req, err := DecodeRequest(stdin)
	if err != nil {
		return writeResponse(stdout, &Response{
			Status: "error",
			Error:  fmt.Sprintf("bad request: %v", err),
		})
	}

	out, err := Render(req.Template, req.Bindings)
	if err != nil {
		var rerr *Error
		diagnostic := err.Error()
		if errors.As(err, &rerr) {
			diagnostic = rerr.Diagnostic
		}
		return writeResponse(stdout, &Response{
			Status: "error",
			Error:  diagnostic,
		})
	}

	return writeResponse(stdout, &Response{
		Status: "ok",
		Output: out,
	})
}

func writeResponse(w io.Writer, resp *Response) error {
	if err := encodeResponse(w, resp); err != nil {
		return fmt.Errorf("write worker response: %w", err)
	}
	return nil
}
