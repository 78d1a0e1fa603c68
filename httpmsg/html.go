package httpmsg

import "fmt"

// statusPageTemplate is a fixed HTML fragment reproduced verbatim from the
// original server's collaborator-provided page. A real embedder is expected
// to supply its own page generator; this is the minimal self-contained
// fallback so the status catalog doesn't depend on an external templating
// package for a three-line fixed layout.
const statusPageTemplate = `<!DOCTYPE html><html><head><title>Dan's hosted site</title>
<style>body{background-color:#e6f2ff}h1{font-size:32;text-align:center;color:black;}</style></head>
<body><h1>%s</h1></body></html>`

// RenderStatusPage renders the fixed status-page template with reason as
// its <h1> text.
func RenderStatusPage(reason string) []byte {
	return []byte(fmt.Sprintf(statusPageTemplate, reason))
}
