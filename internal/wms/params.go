package wms

import (
	"net/url"
	"strings"
)

// Keys set by the HTTP layer rather than the client.
const (
	ParamServerURL     = "server-url"
	ParamThisEndpoint  = "this-endpoint"
	ParamProxyEndpoint = "proxy-endpoint"
	ParamTargetPath    = "targetpath"
)

// Parameters is a case-insensitive view of a WMS query string.
type Parameters struct {
	vals map[string][]string
}

func NewParameters(q url.Values) Parameters {
	p := Parameters{vals: make(map[string][]string, len(q))}
	for k, vs := range q {
		lk := strings.ToLower(k)
		p.vals[lk] = append(p.vals[lk], vs...)
	}
	return p
}

// Get returns the first value of key and whether key was present at all.
func (p Parameters) Get(key string) (string, bool) {
	vs, ok := p.vals[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	if len(vs) == 0 {
		return "", true
	}
	return vs[0], true
}

func (p Parameters) Value(key string) string {
	v, _ := p.Get(key)
	return v
}

func (p Parameters) Has(key string) bool {
	_, ok := p.vals[strings.ToLower(key)]
	return ok
}

func (p Parameters) Set(key, value string) {
	if p.vals == nil {
		return
	}
	p.vals[strings.ToLower(key)] = []string{value}
}
