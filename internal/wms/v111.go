package wms

import (
	"encoding/xml"
	"fmt"

	"github.com/mohammed-shakir/gee-wms/internal/projection"
)

const (
	capabilitiesDoctype111 = `<!DOCTYPE WMT_MS_Capabilities SYSTEM "http://schemas.opengis.net/wms/1.1.1/capabilities_1_1_1.dtd" [ <!ELEMENT VendorSpecificCapabilities EMPTY> ]>` + "\n"
	exceptionDoctype111    = `<!DOCTYPE ServiceExceptionReport SYSTEM "http://www.digitalearth.gov/wmt/xml/exception_1_1_1.dtd">` + "\n"
)

type v111 struct{}

func (v111) String() string                           { return "1.1.1" }
func (v111) CRSParam() string                         { return "srs" }
func (v111) InvalidCRSCode() Code                     { return CodeInvalidSRS }
func (v111) RequiredParams() []string                 { return requiredParams("srs") }
func (v111) SwapsBBoxAxes(projection.Projection) bool { return false }
func (v111) CapabilitiesFilename() string             { return "wmsCapabilities-1.1.1-google.xml" }
func (v111) ExceptionFilename() string                { return "service-exception-1.1.1-google.xml" }

func (v111) UnsupportedRequest(request string) *ServiceException {
	return newException(CodeNone, "WMS request type '%s' not supported.", request)
}

type capabilities111 struct {
	XMLName    xml.Name      `xml:"WMT_MS_Capabilities"`
	Version    string        `xml:"version,attr"`
	Service    service       `xml:"Service"`
	Capability capability111 `xml:"Capability"`
}

type capability111 struct {
	Request   requestSection    `xml:"Request"`
	Exception exceptionSection  `xml:"Exception"`
	Layer     containerLayer111 `xml:"Layer"`
}

type containerLayer111 struct {
	Title  string     `xml:"Title"`
	Layers []layer111 `xml:"Layer"`
}

type latLonBoundingBox struct {
	MinX string `xml:"minx,attr"`
	MinY string `xml:"miny,attr"`
	MaxX string `xml:"maxx,attr"`
	MaxY string `xml:"maxy,attr"`
}

type layer111 struct {
	layerAttrs
	Name   string            `xml:"Name"`
	Title  string            `xml:"Title"`
	SRS    []string          `xml:"SRS"`
	LatLon latLonBoundingBox `xml:"LatLonBoundingBox"`
	BBoxes []boundingBox     `xml:"BoundingBox"`
}

func (v v111) Capabilities(in CapabilitiesInput) ([]byte, error) {
	doc := capabilities111{
		Version: v.String(),
		Service: service{
			Name:           "OGC:WMS",
			Title:          title(in),
			OnlineResource: newOnlineResource(in.OnlineResource, true),
		},
		Capability: capability111{
			Request:   newRequestSection(in.OnlineResource, true),
			Exception: exceptionSection{Formats: []string{exceptionMIME}},
			Layer:     containerLayer111{Title: title(in)},
		},
	}
	for _, l := range in.Layers {
		p := l.Projection
		out := layer111{
			layerAttrs: childLayerAttrs,
			Name:       l.Name,
			Title:      l.Label,
			SRS:        p.CRSNames(),
			LatLon: latLonBoundingBox{
				MinX: coord(-p.MaxLongitude()), MinY: coord(-p.MaxLatitude()),
				MaxX: coord(p.MaxLongitude()), MaxY: coord(p.MaxLatitude()),
			},
		}
		for _, crs := range p.CRSNames() {
			minx, miny, maxx, maxy := bboxAttrs(p.AdvertisedOuterBounds())
			out.BBoxes = append(out.BBoxes, boundingBox{SRS: crs, MinX: minx, MinY: miny, MaxX: maxx, MaxY: maxy})
		}
		doc.Capability.Layer.Layers = append(doc.Capability.Layer.Layers, out)
	}
	return encodeDocument(capabilitiesDoctype111, doc)
}

type exceptionReport111 struct {
	XMLName    xml.Name         `xml:"ServiceExceptionReport"`
	Version    string           `xml:"version,attr"`
	Exceptions []serviceExcItem `xml:"ServiceException"`
}

type serviceExcItem struct {
	Code    string `xml:"code,attr,omitempty"`
	Message string `xml:",chardata"`
}

func (v v111) ExceptionReport(e *ServiceException) ([]byte, error) {
	doc := exceptionReport111{
		Version:    v.String(),
		Exceptions: []serviceExcItem{{Code: string(e.Code), Message: e.Message}},
	}
	b, err := encodeDocument(exceptionDoctype111, doc)
	if err != nil {
		return nil, fmt.Errorf("exception report: %w", err)
	}
	return b, nil
}
