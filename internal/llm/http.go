package llm

import (
	"net/http"
	"time"

	"github.com/ppiankov/reqmap/internal/util"
)

const defaultTimeout = 30 * time.Second

// newHTTPClient builds the client shared by the HTTP based providers
func newHTTPClient(timeout time.Duration, httpProxy, httpsProxy, noProxy string) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: util.ProxyFunc(httpProxy, httpsProxy, noProxy),
		},
	}
}
