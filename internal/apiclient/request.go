package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
)

// Request describes one logical API call. The descriptor itself is not
// mutated during dispatch; the dispatcher tracks retry generations
// internally.
type Request struct {
	// Method defaults to GET.
	Method string

	// Path is resolved against the client's base URL.
	Path string

	// Query is appended to the URL. Optional.
	Query url.Values

	// Header holds caller-supplied headers, merged over the defaults the
	// dispatcher sets. Optional.
	Header http.Header

	// Body, when non-nil, is JSON-encoded. Mutually exclusive with Form.
	Body any

	// Form, when non-nil, is sent as multipart/form-data and the transport
	// sets its own content type with the boundary.
	Form *FormData
}

// FormData is a multipart form payload.
type FormData struct {
	Fields map[string]string
	Files  []FormFile
}

// FormFile is one file part of a multipart form.
type FormFile struct {
	Field   string
	Name    string
	Content []byte
}

// encode renders the form body, returning the bytes and the content type
// carrying the boundary.
func (f *FormData) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, value := range f.Fields {
		if err := w.WriteField(field, value); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", field, err)
		}
	}
	for _, file := range f.Files {
		part, err := w.CreateFormFile(file.Field, file.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %s: %w", file.Field, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", fmt.Errorf("write form file %s: %w", file.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// Response is a fully read API response. The body is buffered so
// classification and the caller can both read it.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// envelope is the backend's JSON error/data shape. Non-2xx bodies are parsed
// defensively: anything unparseable yields a zero envelope, never an error.
type envelope struct {
	Error string          `json:"error"`
	Code  string          `json:"code"`
	Data  json.RawMessage `json:"data"`
}

func (r *Response) envelope() envelope {
	var env envelope
	if len(r.Body) == 0 {
		return env
	}
	// Parse failures are deliberate no-ops; HTML error pages and truncated
	// bodies classify the same as an empty error object.
	_ = json.Unmarshal(r.Body, &env)
	return env
}
