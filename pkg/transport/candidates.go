package transport

import (
	"strconv"
	"strings"

	"github.com/sirosfoundation/go-msv3/pkg/message"
)

// Content types in the order they are tried. Each implies a SOAP version.
const (
	ContentTypeSOAP12 = "application/soap+xml"
	ContentTypeSOAP11 = "text/xml"
)

var contentTypes = []string{ContentTypeSOAP12, ContentTypeSOAP11}

// SOAPVersion selects the envelope namespace.
type SOAPVersion int

const (
	SOAP11 SOAPVersion = 11
	SOAP12 SOAPVersion = 12
)

// Namespace returns the envelope namespace of the version.
func (v SOAPVersion) Namespace() string {
	if v == SOAP11 {
		return message.NsSOAP11
	}
	return message.NsSOAP12
}

func (v SOAPVersion) String() string {
	if v == SOAP11 {
		return "1.1"
	}
	return "1.2"
}

// Route is one URL and content type combination.
type Route struct {
	URL         string
	ContentType string
}

// SOAPVersion returns the envelope version that goes with the content type.
func (r Route) SOAPVersion() SOAPVersion {
	if r.ContentType == ContentTypeSOAP11 {
		return SOAP11
	}
	return SOAP12
}

// Candidates lists the URLs tried for an action, most specific first:
//
//	{base}/v{version}.0/{action}
//	{base}/{version}.0/{action}
//	{base}/v{version}.0
//	{base}/{action}
//	{base}
func Candidates(base string, version int, action string) []string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	v := strconv.Itoa(version) + ".0"

	all := []string{
		base + "/v" + v + "/" + action,
		base + "/" + v + "/" + action,
		base + "/v" + v,
		base + "/" + action,
		base,
	}

	seen := make(map[string]bool, len(all))
	out := make([]string, 0, len(all))
	for _, u := range all {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// plan returns the ordered attempt matrix. A remembered route, if any, is
// tried first and not repeated.
func plan(urls []string, preferred *Route) []Route {
	routes := make([]Route, 0, len(urls)*len(contentTypes)+1)
	if preferred != nil {
		routes = append(routes, *preferred)
	}
	for _, u := range urls {
		for _, ct := range contentTypes {
			r := Route{URL: u, ContentType: ct}
			if preferred != nil && r == *preferred {
				continue
			}
			routes = append(routes, r)
		}
	}
	return routes
}
