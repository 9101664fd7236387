package common

import (
	"net/http"
	"net/http/cookiejar"
	"time"
)

// userAgent is sent on every request. The distributor portal rejects
// requests that do not look like a desktop browser.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0"

type userAgentTransport struct {
	transport http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original request's headers
	// which might be shared or reused
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", userAgent)
	return t.transport.RoundTrip(req)
}

// HTTPClient returns an http client with a browser user-agent and a cookie
// jar, suitable for talking to the portal.
func HTTPClient(timeout time.Duration) *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		// cookiejar.New cannot fail with nil options
		panic(err)
	}
	return &http.Client{
		Transport: &userAgentTransport{
			transport: http.DefaultTransport,
		},
		Jar:     jar,
		Timeout: timeout,
	}
}
