package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"github.com/jrsteele09/workspark/internal/envelope"
	"github.com/rs/zerolog"
)

type route struct {
	prefix string
	proxy  *httputil.ReverseProxy
}

// Router forwards requests to the upstream whose path prefix is the longest match.
type Router struct {
	routes []route
}

// NewRouter builds a Router from prefix to upstream base URL pairs.
func NewRouter(upstreams map[string]string) (*Router, error) {
	rt := &Router{}
	for prefix, raw := range upstreams {
		target, err := url.Parse(raw)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("gateway.NewRouter: invalid upstream %q for %q", raw, prefix)
		}
		rt.routes = append(rt.routes, route{prefix: prefix, proxy: newReverseProxy(target)})
	}
	sort.Slice(rt.routes, func(i, j int) bool {
		return len(rt.routes[i].prefix) > len(rt.routes[j].prefix)
	})
	return rt, nil
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, rte := range rt.routes {
		if strings.HasPrefix(r.URL.Path, rte.prefix) {
			rte.proxy.ServeHTTP(w, r)
			return
		}
	}
	envelope.Write(w, http.StatusNotFound, envelope.Response{Message: "No route for path", Error: "Not Found"})
}

func newReverseProxy(target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("upstream", target.String()).Msg("upstream request failed")
			envelope.Write(w, http.StatusBadGateway, envelope.Response{Message: "Upstream unavailable", Error: envelope.ServerError})
		},
	}
}
