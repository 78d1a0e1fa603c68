// Package httpmsg implements a line-based HTTP/1.1 request parser and
// response serializer, modeled on the line/colon splitting logic of
// original_source/WebServer.cpp's BuildFromDataStream and generalized to Go
// idioms. No ecosystem HTTP parsing library is used: this package exists
// precisely to hand-roll that parsing, matching the original server's
// behavior rather than net/http's.
package httpmsg

import "bytes"

// Request is an immutable (once built) parsed HTTP request.
type Request struct {
	Method   Method
	URL      string
	Query    string
	Headers  map[string]string
	Complete bool
}

// terminator is the four-byte sequence that marks a complete request.
var terminator = []byte("\r\n\r\n")

// IsComplete reports whether buf ends with the blank-line terminator that
// marks a complete HTTP request.
func IsComplete(buf []byte) bool {
	return len(buf) >= len(terminator) && bytes.Equal(buf[len(buf)-len(terminator):], terminator)
}

// startLineSuffix is the fixed suffix (before the trailing \n) that marks a
// well-formed line as the request start line.
var startLineSuffix = []byte("HTTP/1.1\r")

// Parse parses buf into a Request. It always returns a non-nil Request;
// Complete reflects IsComplete(buf), and Method is Invalid if no
// well-formed start line was found.
func Parse(buf []byte) *Request {
	req := &Request{
		Method:   Invalid,
		Headers:  make(map[string]string),
		Complete: IsComplete(buf),
	}

	for _, line := range splitLines(buf) {
		if !wellFormed(line) {
			continue
		}
		// withoutNewline still ends in \r (wellFormed guarantees this);
		// content strips that \r too, leaving just the line's text.
		withoutNewline := line[:len(line)-1]
		content := withoutNewline[:len(withoutNewline)-1]

		if bytes.HasSuffix(withoutNewline, startLineSuffix) {
			parseStartLine(content, req)
			continue
		}
		parseHeaderLine(content, req)
	}

	return req
}

// splitLines walks buf line by line, where a line terminates at \n and the
// \n itself is included in the returned slice.
func splitLines(buf []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range buf {
		if b == '\n' {
			lines = append(lines, buf[start:i+1])
			start = i + 1
		}
	}
	return lines
}

// wellFormed reports whether line (including its trailing \n) has length
// > 2 and a \r as its penultimate character.
func wellFormed(line []byte) bool {
	return len(line) > 2 && line[len(line)-2] == '\r'
}

// parseStartLine extracts method, URL, and query string from a start line
// (with the trailing \r already stripped).
func parseStartLine(content []byte, req *Request) {
	for _, entry := range methodNames {
		if bytes.HasPrefix(content, []byte(entry.name)) {
			req.Method = entry.method
			break
		}
	}

	slash := bytes.IndexByte(content, '/')
	if slash < 0 {
		return
	}
	rest := content[slash:]

	qMark := bytes.IndexByte(rest, '?')
	sp := bytes.IndexByte(rest, ' ')

	urlEnd := len(rest)
	if sp >= 0 && (qMark < 0 || sp < qMark) {
		urlEnd = sp
	} else if qMark >= 0 {
		urlEnd = qMark
	}
	req.URL = string(rest[:urlEnd])

	if qMark >= 0 && (sp < 0 || qMark < sp) {
		queryEnd := len(rest)
		if sp >= 0 {
			queryEnd = sp
		}
		req.Query = string(rest[qMark+1 : queryEnd])
	}
}

// parseHeaderLine splits content (with the trailing \r already stripped) on
// the first colon. Duplicate header names are not merged; the last
// occurrence wins.
func parseHeaderLine(content []byte, req *Request) {
	colon := bytes.IndexByte(content, ':')
	if colon < 0 {
		return
	}
	name := string(content[:colon])

	valueStart := colon + 1
	if valueStart < len(content) && content[valueStart] == ' ' {
		valueStart++
	}
	req.Headers[name] = string(content[valueStart:])
}

// HeaderEquals reports whether the named header is present and its value
// is exactly value. Header names and values are matched case-sensitively
// as received, matching original_source/WebServer.cpp's
// ServerRequestMessage::CheckHeaderValue.
func (r *Request) HeaderEquals(name, value string) bool {
	got, ok := r.Headers[name]
	return ok && got == value
}
