package httpmsg

// WebSocketSuccessBaseKey is the distinguished registry key under which the
// prebuilt 101 handshake template is stored.
const WebSocketSuccessBaseKey = "websocket-success-base"

// BuildStatusCatalog prebuilds one canned Response per status code (except
// StatusInvalid), keyed by its reason-phrase text (e.g. "404 Not Found"),
// plus a 101-response handshake template keyed by WebSocketSuccessBaseKey.
func BuildStatusCatalog() map[string]*Response {
	catalog := make(map[string]*Response, len(AllStatusCodes)+1)

	for _, code := range AllStatusCodes {
		resp := NewResponse(code)
		resp.AddContent(RenderStatusPage(code.ReasonPhrase()), "text/html; charset=utf-8")
		resp.AddMessageHeaders(map[string]string{"Connection": "Close"})
		catalog[code.ReasonPhrase()] = resp
	}

	wsBase := NewResponse(Status101)
	wsBase.AddMessageHeaders(map[string]string{
		"Connection": "Upgrade",
		"Upgrade":    "websocket",
	})
	catalog[WebSocketSuccessBaseKey] = wsBase

	return catalog
}
