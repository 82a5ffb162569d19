package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// Result is the flat outcome the convenience wrappers hand to callers. The
// wrappers never return a Go error: exhausted network retries surface as
// Success=false with the failure message in Error, so UI code has a single
// path to check.
type Result struct {
	Success bool
	Status  int
	Data    json.RawMessage
	Error   string
}

// Get issues a GET to path.
func (c *Client) Get(ctx context.Context, path string) Result {
	return c.do(ctx, Request{Method: http.MethodGet, Path: path})
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) Result {
	return c.do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) Result {
	return c.do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete issues a DELETE to path.
func (c *Client) Delete(ctx context.Context, path string) Result {
	return c.do(ctx, Request{Method: http.MethodDelete, Path: path})
}

// PostForm issues a POST with a multipart form payload.
func (c *Client) PostForm(ctx context.Context, path string, form *FormData) Result {
	return c.do(ctx, Request{Method: http.MethodPost, Path: path, Form: form})
}

func (c *Client) do(ctx context.Context, req Request) Result {
	resp, err := c.Call(ctx, req)
	if err != nil {
		result := Result{Success: false, Error: err.Error()}
		var nf *NetworkFailure
		if errors.As(err, &nf) {
			result.Status = nf.Status
		}
		return result
	}
	return normalize(resp)
}

// normalize flattens a Response into a Result. Data prefers the envelope's
// data field and falls back to the whole body for endpoints that return bare
// payloads.
func normalize(resp *Response) Result {
	env := resp.envelope()

	result := Result{
		Success: resp.OK(),
		Status:  resp.Status,
	}

	if len(env.Data) > 0 {
		result.Data = env.Data
	} else if resp.OK() {
		result.Data = resp.Body
	}

	if !resp.OK() {
		switch {
		case env.Error != "":
			result.Error = env.Error
		case env.Code != "":
			result.Error = env.Code
		default:
			result.Error = http.StatusText(resp.Status)
		}
	}

	return result
}
