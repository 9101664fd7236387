package eds

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

// The login flow needs exactly two things out of the portal's HTML: the
// script tags on the login page and the auraConfig blob on the landing page.
// These are narrow string-level routines on purpose; the portal markup is
// not parsed beyond what the handshake requires.

const auraConfigMarker = "auraConfig"

var scriptSrcRe = regexp.MustCompile(`<script[^>]*\ssrc\s*=\s*"([^"]+)"`)

// scriptSrcs returns the src attribute of every script tag in the page, in
// document order.
func scriptSrcs(html string) []string {
	var srcs []string
	for _, m := range scriptSrcRe.FindAllStringSubmatch(html, -1) {
		srcs = append(srcs, m[1])
	}
	return srcs
}

// hasAuraConfig reports whether the page embeds the aura framework
// configuration marker.
func hasAuraConfig(html string) bool {
	return strings.Contains(html, auraConfigMarker)
}

// extractAuraConfig slices the auraConfig JSON object out of the landing
// page. The blob starts at the first "{" after the marker and runs to the
// next ";".
func extractAuraConfig(html string) (json.RawMessage, error) {
	ix := strings.Index(html, auraConfigMarker)
	if ix == -1 {
		return nil, &ProtocolError{Reason: "auraConfig not found"}
	}
	start := strings.Index(html[ix:], "{")
	if start == -1 {
		return nil, &ProtocolError{Reason: "auraConfig object not found"}
	}
	start += ix
	end := strings.Index(html[start:], ";")
	if end == -1 {
		return nil, &ProtocolError{Reason: "auraConfig object not terminated"}
	}
	raw := json.RawMessage(html[start : start+end])
	if !json.Valid(raw) {
		return nil, &ProtocolError{Reason: "auraConfig is not valid json"}
	}
	return raw, nil
}

// contextFromResourceSrc extracts the aura context JSON embedded in a
// resources.js script URL. The URL-decoded src carries the context between
// its first "{" and last "}".
func contextFromResourceSrc(src string) (json.RawMessage, error) {
	unq, err := url.QueryUnescape(src)
	if err != nil {
		return nil, &ProtocolError{Reason: "resources src not url-encoded: " + err.Error()}
	}
	start := strings.Index(unq, "{")
	end := strings.LastIndex(unq, "}")
	if start == -1 || end == -1 || end < start {
		return nil, &ProtocolError{Reason: "no context object in resources src"}
	}
	raw := json.RawMessage(unq[start : end+1])
	if !json.Valid(raw) {
		return nil, &ProtocolError{Reason: "context is not valid json"}
	}
	return raw, nil
}
