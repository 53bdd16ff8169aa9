package google

import (
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newRewriteClient creates an HTTP client that sends requests for
// targetPrefix to the test server instead.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{
			base:         http.DefaultTransport,
			testServer:   testServerURL,
			targetPrefix: targetPrefix,
		},
	}
}

type rewriteTransport struct {
	base         http.RoundTripper
	testServer   string
	targetPrefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	if !strings.HasPrefix(origURL, t.targetPrefix) {
		return t.base.RoundTrip(req)
	}
	parsed, err := req.URL.Parse(t.testServer + origURL[len(t.targetPrefix):])
	if err != nil {
		return nil, err
	}
	newReq := req.Clone(req.Context())
	newReq.URL = parsed
	newReq.Host = parsed.Host
	return t.base.RoundTrip(newReq)
}
