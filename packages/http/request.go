package http

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Request is a prepared test case request. Path may be relative to the
// client's base URL or an absolute http(s) URL.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Params  map[string]string
	Body    any
}

func NewRequest(method, path string) *Request {
	return &Request{
		Method:  strings.ToUpper(method),
		Path:    path,
		Headers: make(map[string]string),
		Params:  make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetParam(key, value string) *Request {
	r.Params[key] = value
	return r
}

func (r *Request) SetBody(body any) *Request {
	r.Body = body
	return r
}

func (r *Request) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// BuildURL joins Path onto baseURL and appends Params as the query string.
func (r *Request) BuildURL(baseURL string) (string, error) {
	raw := r.Path
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		if baseURL == "" {
			return "", fmt.Errorf("relative path %q requires a base URL", raw)
		}
		raw = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(raw, "/")
	}

	if len(r.Params) == 0 {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	q := u.Query()
	for k, v := range r.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// EncodeBody renders Body for the wire. Strings and byte slices are sent
// as-is. Maps are form-encoded when the Content-Type header asks for it and
// everything else is JSON. The returned content type is empty when the
// caller's header should be kept.
func (r *Request) EncodeBody() ([]byte, string, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(b), "", nil
	case []byte:
		return b, "", nil
	}

	if strings.HasPrefix(r.Header("Content-Type"), "application/x-www-form-urlencoded") {
		if m, ok := r.Body.(map[string]any); ok {
			form := url.Values{}
			for k, v := range m {
				form.Set(k, fmt.Sprintf("%v", v))
			}
			return []byte(form.Encode()), "", nil
		}
	}

	data, err := json.Marshal(r.Body)
	if err != nil {
		return nil, "", fmt.Errorf("encode body: %w", err)
	}
	contentType := ""
	if r.Header("Content-Type") == "" {
		contentType = "application/json"
	}
	return data, contentType, nil
}

func ParseFormBody(body string) map[string]string {
	result := make(map[string]string)
	pairs := strings.Split(body, "&")
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			key, _ := url.QueryUnescape(kv[0])
			value, _ := url.QueryUnescape(kv[1])
			result[key] = value
		}
	}
	return result
}
