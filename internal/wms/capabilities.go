package wms

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/mohammed-shakir/gee-wms/internal/geom"
	"github.com/mohammed-shakir/gee-wms/internal/layers"
)

const (
	xlinkNS       = "http://www.w3.org/1999/xlink"
	exceptionMIME = "application/vnd.ogc.se_xml"
	defaultTitle  = "Google Earth WMS service."
)

type onlineResource struct {
	XMLNSXlink string `xml:"xmlns:xlink,attr,omitempty"`
	Type       string `xml:"xlink:type,attr"`
	Href       string `xml:"xlink:href,attr"`
}

func newOnlineResource(href string, withNS bool) onlineResource {
	r := onlineResource{Type: "simple", Href: href}
	if withNS {
		r.XMLNSXlink = xlinkNS
	}
	return r
}

type service struct {
	Name           string         `xml:"Name"`
	Title          string         `xml:"Title"`
	OnlineResource onlineResource `xml:"OnlineResource"`
}

type dcpType struct {
	Get onlineResource `xml:"HTTP>Get>OnlineResource"`
}

type operation struct {
	Formats []string `xml:"Format"`
	DCPType dcpType  `xml:"DCPType"`
}

type requestSection struct {
	GetCapabilities operation `xml:"GetCapabilities"`
	GetMap          operation `xml:"GetMap"`
}

type exceptionSection struct {
	Formats []string `xml:"Format"`
}

type boundingBox struct {
	SRS  string `xml:"SRS,attr,omitempty"`
	CRS  string `xml:"CRS,attr,omitempty"`
	MinX string `xml:"minx,attr"`
	MinY string `xml:"miny,attr"`
	MaxX string `xml:"maxx,attr"`
	MaxY string `xml:"maxy,attr"`
}

type layerAttrs struct {
	Opaque    int `xml:"opaque,attr"`
	Queryable int `xml:"queryable,attr"`
	NoSubsets int `xml:"noSubsets,attr"`
}

var childLayerAttrs = layerAttrs{Opaque: 1}

func newRequestSection(href string, withNS bool) requestSection {
	dcp := dcpType{Get: newOnlineResource(href, withNS)}
	return requestSection{
		GetCapabilities: operation{Formats: []string{"text/xml"}, DCPType: dcp},
		GetMap:          operation{Formats: layers.KnownFormats, DCPType: dcp},
	}
}

// coord renders a float without exponent notation.
func coord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func bboxAttrs(r geom.Rect) (minx, miny, maxx, maxy string) {
	return coord(r.X0), coord(r.Y0), coord(r.X1), coord(r.Y1)
}

func title(in CapabilitiesInput) string {
	if in.Title == "" {
		return defaultTitle
	}
	return in.Title
}

func encodeDocument(prolog string, doc any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(prolog)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode xml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
