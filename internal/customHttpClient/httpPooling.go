package customHttpClient

import (
	"net/http"
	"sync"

	"github.com/akolanti/uniassist/internal/config"
)

var (
	once   sync.Once
	client *http.Client
)

var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// Shared returns the pooled client used by the Gemini and OpenAI adapters so
// that embeddings and completions reuse the same connections.
func Shared() *http.Client {
	once.Do(func() {
		client = &http.Client{Transport: customTransport}
	})
	return client
}
