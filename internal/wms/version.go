package wms

import (
	"strings"

	"github.com/mohammed-shakir/gee-wms/internal/layers"
	"github.com/mohammed-shakir/gee-wms/internal/projection"
)

// Version is one supported WMS protocol version. It owns everything that
// differs between versions: parameter names, axis order and document formats.
type Version interface {
	String() string
	// CRSParam is "srs" for 1.1.1 and "crs" for 1.3.0.
	CRSParam() string
	InvalidCRSCode() Code
	// RequiredParams lists the GetMap parameters in the order they are checked.
	RequiredParams() []string
	// SwapsBBoxAxes reports whether BBOX arrives as (lat, lon) for p.
	SwapsBBoxAxes(p projection.Projection) bool
	Capabilities(in CapabilitiesInput) ([]byte, error)
	ExceptionReport(e *ServiceException) ([]byte, error)
	UnsupportedRequest(request string) *ServiceException
	CapabilitiesFilename() string
	ExceptionFilename() string
}

// CapabilitiesInput is what a capabilities document is rendered from.
type CapabilitiesInput struct {
	Title          string
	OnlineResource string
	Layers         []*layers.Layer
}

var (
	V111 Version = v111{}
	V130 Version = v130{}
)

// ResolveVersion maps a client VERSION value to a supported version. An
// absent version and any 1.3.x negotiate to 1.3.0.
func ResolveVersion(raw string) (Version, bool) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return V130, true
	case raw == "1.1.1":
		return V111, true
	case strings.HasPrefix(raw, "1.3."):
		return V130, true
	}
	return nil, false
}

func requiredParams(crsParam string) []string {
	return []string{"version", "request", "layers", "styles", crsParam, "bbox", "width", "height", "format"}
}
