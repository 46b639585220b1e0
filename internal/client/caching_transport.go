package client

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// newCachingTransport returns a transport that stores catalog responses and
// revalidates them with If-None-Match. With an empty cacheDir the cache lives
// in memory for the life of the process; otherwise it persists across runs.
func newCachingTransport(cacheDir string) *httpcache.Transport {
	if cacheDir == "" {
		return httpcache.NewTransport(httpcache.NewMemoryCache())
	}

	return httpcache.NewTransport(diskcache.New(cacheDir))
}

// fromCache reports whether httpcache answered the request from its store.
func fromCache(resp *http.Response) bool {
	return resp.Header.Get(httpcache.XFromCache) == "1"
}
