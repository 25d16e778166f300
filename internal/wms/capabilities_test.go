package wms

import (
	"context"
	"encoding/xml"
	"strings"
	"testing"
)

func getCapabilities(t *testing.T, d *Dispatcher, raw string) string {
	t.Helper()
	resp := d.Dispatch(context.Background(), params(raw))
	if resp.Header.Get("Content-Type") != "text/xml" {
		t.Fatalf("content type=%q body=%s", resp.Header.Get("Content-Type"), resp.Body)
	}
	if err := xml.Unmarshal(resp.Body, new(struct{})); err != nil {
		t.Fatalf("capabilities not well formed: %v", err)
	}
	return string(resp.Body)
}

func mustContain(t *testing.T, doc string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(doc, p) {
			t.Fatalf("document lacks %q:\n%s", p, doc)
		}
	}
}

func TestCapabilities111(t *testing.T) {
	d, _ := newTestDispatcher(Options{})
	resp := d.Dispatch(context.Background(), params("SERVICE=WMS&VERSION=1.1.1&REQUEST=GetCapabilities&TargetPath=merc"))
	if cd := resp.Header.Get("Content-Disposition"); cd != `inline; filename="wmsCapabilities-1.1.1-google.xml"` {
		t.Fatalf("content disposition=%q", cd)
	}
	doc := getCapabilities(t, d, "SERVICE=WMS&VERSION=1.1.1&REQUEST=GetCapabilities&TargetPath=merc")
	mustContain(t, doc,
		`<!DOCTYPE WMT_MS_Capabilities SYSTEM "http://schemas.opengis.net/wms/1.1.1/capabilities_1_1_1.dtd" [ <!ELEMENT VendorSpecificCapabilities EMPTY> ]>`,
		`<WMT_MS_Capabilities version="1.1.1">`,
		`<Name>OGC:WMS</Name>`,
		`<Title>Google Earth WMS service.</Title>`,
		`xlink:href="http://wms.example.com/merc/wms"`,
		`<Format>application/vnd.ogc.se_xml</Format>`,
		`<Layer opaque="1" queryable="0" noSubsets="0">`,
		`<Name>[merc]:1002</Name>`,
		`<Title>Roads</Title>`,
		`<SRS>EPSG:3857</SRS>`,
		`<SRS>EPSG:900913</SRS>`,
		`<LatLonBoundingBox minx="-180" miny="-85.05112877980659" maxx="180" maxy="85.05112877980659">`,
		`<BoundingBox SRS="EPSG:3857" minx="-20037508.34`,
	)
	if strings.Contains(doc, "<CRS>") {
		t.Fatalf("1.1.1 document must use SRS")
	}
}

func TestCapabilities130(t *testing.T) {
	d, _ := newTestDispatcher(Options{Title: "Acme maps"})
	doc := getCapabilities(t, d, "SERVICE=WMS&REQUEST=GetCapabilities&TargetPath=flat")
	mustContain(t, doc,
		`<WMS_Capabilities version="1.3.0" xmlns="http://www.opengis.net/wms"`,
		`<Name>WMS</Name>`,
		`<Title>Acme maps</Title>`,
		`<CRS>EPSG:4326</CRS>`,
		`<westBoundLongitude>-180</westBoundLongitude>`,
		`<northBoundLatitude>90</northBoundLatitude>`,
		`<BoundingBox CRS="EPSG:4326" minx="-90" miny="-180" maxx="90" maxy="180">`,
	)
	if strings.Contains(doc, "DOCTYPE") {
		t.Fatalf("1.3.0 document must not carry a DOCTYPE")
	}
}

func TestCapabilities_PrefersProxyEndpoint(t *testing.T) {
	d, _ := newTestDispatcher(Options{})
	p := params("SERVICE=WMS&REQUEST=GetCapabilities&TargetPath=merc")
	p.Set(ParamProxyEndpoint, "https://public.example.org/maps/wms")
	resp := d.Dispatch(context.Background(), p)
	mustContain(t, string(resp.Body), `xlink:href="https://public.example.org/maps/wms"`)
	if strings.Contains(string(resp.Body), "wms.example.com") {
		t.Fatalf("this-endpoint leaked into capabilities")
	}
}

func TestCapabilities_UnsupportedDatabase(t *testing.T) {
	d, _ := newTestDispatcher(Options{})
	_, msg := decodeException(t, d.Dispatch(context.Background(), params("SERVICE=WMS&REQUEST=GetCapabilities&TargetPath=cut")))
	if msg != "Database type is not supported." {
		t.Fatalf("msg=%q", msg)
	}
}

func TestExceptionReport111(t *testing.T) {
	body, err := V111.ExceptionReport(&ServiceException{Code: CodeLayerNotDefined, Message: "a < b"})
	if err != nil {
		t.Fatalf("ExceptionReport: %v", err)
	}
	doc := string(body)
	mustContain(t, doc,
		`<!DOCTYPE ServiceExceptionReport SYSTEM "http://www.digitalearth.gov/wmt/xml/exception_1_1_1.dtd">`,
		`<ServiceExceptionReport version="1.1.1">`,
		`<ServiceException code="LayerNotDefined">a &lt; b</ServiceException>`,
	)
}

func TestExceptionReport130OmitsEmptyCode(t *testing.T) {
	body, err := V130.ExceptionReport(&ServiceException{Message: "boom"})
	if err != nil {
		t.Fatalf("ExceptionReport: %v", err)
	}
	mustContain(t, string(body), `xmlns="http://www.opengis.net/ogc"`, `<ServiceException>boom</ServiceException>`)
}

func TestParseBBox(t *testing.T) {
	r, err := ParseBBox(" 1, 2 ,3,4", false)
	if err != nil || r.X0 != 1 || r.Y0 != 2 || r.X1 != 3 || r.Y1 != 4 {
		t.Fatalf("r=%v err=%v", r, err)
	}
	r, err = ParseBBox("1,2,3,4", true)
	if err != nil || r.X0 != 2 || r.Y0 != 1 || r.X1 != 4 || r.Y1 != 3 {
		t.Fatalf("swapped r=%v err=%v", r, err)
	}
	for _, bad := range []string{"", "1,2,3,4,5", "NaN,0,1,1", "0,0,Inf,1", "0,0,0,1"} {
		if _, err := ParseBBox(bad, false); err == nil {
			t.Fatalf("ParseBBox(%q) should fail", bad)
		}
	}
}

func TestVersionFilenames(t *testing.T) {
	cases := []struct {
		v          Version
		caps, excs string
	}{
		{V111, "wmsCapabilities-1.1.1-google.xml", "service-exception-1.1.1-google.xml"},
		{V130, "wmsCapabilities-1.3.0-google.xml", "service-exception-1.3.0-google.xml"},
	}
	for _, tc := range cases {
		if got := tc.v.CapabilitiesFilename(); got != tc.caps {
			t.Fatalf("%s capabilities filename=%q want %q", tc.v, got, tc.caps)
		}
		if got := tc.v.ExceptionFilename(); got != tc.excs {
			t.Fatalf("%s exception filename=%q want %q", tc.v, got, tc.excs)
		}
	}
}
