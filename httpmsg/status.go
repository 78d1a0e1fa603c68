package httpmsg

// StatusCode is one of the fixed set of HTTP status codes this server can
// emit.
type StatusCode int

// StatusInvalid marks a status that must never be serialized.
const StatusInvalid StatusCode = 0

const (
	Status100 StatusCode = 100
	Status101 StatusCode = 101
	Status200 StatusCode = 200
	Status201 StatusCode = 201
	Status202 StatusCode = 202
	Status400 StatusCode = 400
	Status401 StatusCode = 401
	Status403 StatusCode = 403
	Status404 StatusCode = 404
	Status408 StatusCode = 408
	Status429 StatusCode = 429
	Status500 StatusCode = 500
	Status501 StatusCode = 501
	Status503 StatusCode = 503
)

// reasonPhrases gives the "<code> <reason>" text used both as the response
// status line and as the registry key for prebuilt canned responses.
var reasonPhrases = map[StatusCode]string{
	Status100: "100 Continue",
	Status101: "101 Switching Protocols",
	Status200: "200 Ok",
	Status201: "201 Created",
	Status202: "202 Accepted",
	Status400: "400 Bad Request",
	Status401: "401 Unauthorized",
	Status403: "403 Forbidden",
	Status404: "404 Not Found",
	Status408: "408 Request Timeout",
	Status429: "429 Too Many Requests",
	Status500: "500 Internal Server Error",
	Status501: "501 Not Implemented",
	Status503: "503 Service Unavailable",
}

// AllStatusCodes lists every status code except StatusInvalid, in a fixed
// order, for prebuilding the canned-response catalog at startup.
var AllStatusCodes = []StatusCode{
	Status100, Status101, Status200, Status201, Status202,
	Status400, Status401, Status403, Status404, Status408,
	Status429, Status500, Status501, Status503,
}

// ReasonPhrase returns the "<code> <reason>" text for code, or "" if code
// is not recognized.
func (c StatusCode) ReasonPhrase() string {
	return reasonPhrases[c]
}
