package httpmsg

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Response is a mutable-until-serialized HTTP response message. Once built
// with NewResponse, AddContent and AddMessageHeaders mutate it; Bytes
// serializes it, caching the result until the next mutation invalidates
// the cache.
//
// Canned catalog responses are shared across every connection goroutine
// that serves the same URL, so Bytes guards the cache with a mutex; this is
// the one place in the package where concurrent access is expected.
type Response struct {
	mu      sync.Mutex
	status  StatusCode
	headers map[string]string
	content []byte

	blob []byte // cached serialized form; nil when stale
}

// NewResponse constructs a Response for status, auto-injecting a Date
// header in RFC 1123 format using the local timezone.
func NewResponse(status StatusCode) *Response {
	r := &Response{
		status:  status,
		headers: make(map[string]string),
	}
	r.headers["Date"] = time.Now().Format(time.RFC1123)
	return r
}

// Status returns the response's status code.
func (r *Response) Status() StatusCode {
	return r.status
}

// Header returns the value of the named header, and whether it is set.
func (r *Response) Header(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.headers[name]
	return v, ok
}

// AddContent sets the response body and its Content-Type, and derives a
// consistent Content-Length header. It invalidates any cached serialized
// blob.
func (r *Response) AddContent(content []byte, contentType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.content = content
	r.headers["Content-Type"] = contentType
	r.headers["Content-Length"] = fmt.Sprintf("%d", len(content))
	r.blob = nil
}

// AddMessageHeaders merges headers into the response's header set,
// overwriting any existing values with the same name. It invalidates any
// cached serialized blob.
func (r *Response) AddMessageHeaders(headers map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range headers {
		r.headers[k] = v
	}
	r.blob = nil
}

// Clone returns a deep copy of r, suitable for the per-request mutation of
// prebuilt catalog templates (e.g. the websocket-success-base template
// cloned for each handshake).
func (r *Response) Clone() *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	headers := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		headers[k] = v
	}
	content := append([]byte(nil), r.content...)
	return &Response{status: r.status, headers: headers, content: content}
}

// Bytes serializes the response into its wire form, caching the result.
// Subsequent calls with no intervening mutation return the cached blob
// unchanged.
// Concurrent calls from different connection goroutines serving the same
// canned catalog response are safe.
//
// Bytes panics if status is StatusInvalid, or if Content-Type is
// image/webp or text/html while content is shorter than two bytes — these
// are the source's BuildMessage assertion-failure preconditions, i.e.
// programmer errors rather than conditions untrusted input can trigger.
func (r *Response) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.blob != nil {
		return r.blob
	}

	if r.status == StatusInvalid {
		panic("httpmsg: cannot serialize a response with StatusInvalid")
	}
	if ct := r.headers["Content-Type"]; ct == "image/webp" || ct == "text/html; charset=utf-8" || ct == "text/html" {
		if len(r.content) < 2 {
			panic("httpmsg: Content-Type " + ct + " requires content of at least 2 bytes")
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %s\r\n", r.status.ReasonPhrase())

	names := make([]string, 0, len(r.headers))
	for name := range r.headers {
		names = append(names, name)
	}
	sort.Strings(names) // serialized header order is otherwise unspecified
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\r\n", name, r.headers[name])
	}
	b.WriteString("\r\n")

	out := append([]byte(b.String()), r.content...)
	r.blob = out
	return out
}
