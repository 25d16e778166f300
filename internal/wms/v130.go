package wms

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/gee-wms/internal/projection"
)

const (
	wmsNS            = "http://www.opengis.net/wms"
	ogcNS            = "http://www.opengis.net/ogc"
	xsiNS            = "http://www.w3.org/2001/XMLSchema-instance"
	capabilitiesXSD  = "http://www.opengis.net/wms http://schemas.opengis.net/wms/1.3.0/capabilities_1_3_0.xsd"
	exceptionsXSD    = "http://www.opengis.net/ogc http://schemas.opengis.net/wms/1.3.0/exceptions_1_3_0.xsd"
	geographicCRS130 = "EPSG:4326"
)

type v130 struct{}

func (v130) String() string               { return "1.3.0" }
func (v130) CRSParam() string             { return "crs" }
func (v130) InvalidCRSCode() Code         { return CodeInvalidCRS }
func (v130) RequiredParams() []string     { return requiredParams("crs") }
func (v130) CapabilitiesFilename() string { return "wmsCapabilities-1.3.0-google.xml" }
func (v130) ExceptionFilename() string    { return "service-exception-1.3.0-google.xml" }

// SwapsBBoxAxes is true for geographic layers: 1.3.0 orders EPSG:4326
// coordinates latitude first.
func (v130) SwapsBBoxAxes(p projection.Projection) bool {
	return projection.HasCRS(p, geographicCRS130)
}

func (v130) UnsupportedRequest(request string) *ServiceException {
	return newException(CodeOperationNotSupported, "WMS request type '%s' not supported.", request)
}

type capabilities130 struct {
	XMLName        xml.Name      `xml:"WMS_Capabilities"`
	Version        string        `xml:"version,attr"`
	Xmlns          string        `xml:"xmlns,attr"`
	XmlnsXlink     string        `xml:"xmlns:xlink,attr"`
	XmlnsXsi       string        `xml:"xmlns:xsi,attr"`
	SchemaLocation string        `xml:"xsi:schemaLocation,attr"`
	Service        service       `xml:"Service"`
	Capability     capability130 `xml:"Capability"`
}

type capability130 struct {
	Request   requestSection    `xml:"Request"`
	Exception exceptionSection  `xml:"Exception"`
	Layer     containerLayer130 `xml:"Layer"`
}

type containerLayer130 struct {
	Title  string     `xml:"Title"`
	Layers []layer130 `xml:"Layer"`
}

type geographicBoundingBox struct {
	West  string `xml:"westBoundLongitude"`
	East  string `xml:"eastBoundLongitude"`
	South string `xml:"southBoundLatitude"`
	North string `xml:"northBoundLatitude"`
}

type layer130 struct {
	layerAttrs
	Name       string                `xml:"Name"`
	Title      string                `xml:"Title"`
	CRS        []string              `xml:"CRS"`
	Geographic geographicBoundingBox `xml:"EX_GeographicBoundingBox"`
	BBoxes     []boundingBox         `xml:"BoundingBox"`
}

func (v v130) Capabilities(in CapabilitiesInput) ([]byte, error) {
	doc := capabilities130{
		Version:        v.String(),
		Xmlns:          wmsNS,
		XmlnsXlink:     xlinkNS,
		XmlnsXsi:       xsiNS,
		SchemaLocation: capabilitiesXSD,
		Service: service{
			Name:           "WMS",
			Title:          title(in),
			OnlineResource: newOnlineResource(in.OnlineResource, false),
		},
		Capability: capability130{
			Request:   newRequestSection(in.OnlineResource, false),
			Exception: exceptionSection{Formats: []string{exceptionMIME}},
			Layer:     containerLayer130{Title: title(in)},
		},
	}
	for _, l := range in.Layers {
		p := l.Projection
		out := layer130{
			layerAttrs: childLayerAttrs,
			Name:       l.Name,
			Title:      l.Label,
			CRS:        p.CRSNames(),
			Geographic: geographicBoundingBox{
				West: coord(-p.MaxLongitude()), East: coord(p.MaxLongitude()),
				South: coord(-p.MaxLatitude()), North: coord(p.MaxLatitude()),
			},
		}
		for _, crs := range p.CRSNames() {
			minx, miny, maxx, maxy := bboxAttrs(p.AdvertisedOuterBounds())
			if strings.EqualFold(crs, geographicCRS130) {
				minx, miny, maxx, maxy = miny, minx, maxy, maxx
			}
			out.BBoxes = append(out.BBoxes, boundingBox{CRS: crs, MinX: minx, MinY: miny, MaxX: maxx, MaxY: maxy})
		}
		doc.Capability.Layer.Layers = append(doc.Capability.Layer.Layers, out)
	}
	return encodeDocument("", doc)
}

type exceptionReport130 struct {
	XMLName        xml.Name         `xml:"ServiceExceptionReport"`
	Version        string           `xml:"version,attr"`
	Xmlns          string           `xml:"xmlns,attr"`
	XmlnsXsi       string           `xml:"xmlns:xsi,attr"`
	SchemaLocation string           `xml:"xsi:schemaLocation,attr"`
	Exceptions     []serviceExcItem `xml:"ServiceException"`
}

func (v v130) ExceptionReport(e *ServiceException) ([]byte, error) {
	doc := exceptionReport130{
		Version:        v.String(),
		Xmlns:          ogcNS,
		XmlnsXsi:       xsiNS,
		SchemaLocation: exceptionsXSD,
		Exceptions:     []serviceExcItem{{Code: string(e.Code), Message: e.Message}},
	}
	b, err := encodeDocument("", doc)
	if err != nil {
		return nil, fmt.Errorf("exception report: %w", err)
	}
	return b, nil
}
