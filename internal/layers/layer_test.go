package layers

import (
	"testing"

	"github.com/mohammed-shakir/gee-wms/internal/projection"
)

func TestTileURL_MapDatabase(t *testing.T) {
	l := &Layer{
		ID:          "1002",
		TargetURL:   "http://earth.example.com/merc",
		Projection:  projection.Mercator{},
		RequestType: RequestImageryMapsMercator,
		DBType:      DBType2D,
		Version:     "5",
		ArgNames:    RequestImageryMapsMercator.ArgNames(),
	}
	got := l.WithImageFormat(FormatPNG).TileURL(3, 4, 5)
	want := "http://earth.example.com/merc/query?request=ImageryMapsMercator&format=image/png&channel=1002&version=5&x=3&y=4&z=5"
	if got != want {
		t.Fatalf("url=\n%s\nwant\n%s", got, want)
	}
	if l.ImageFormat() != FormatJPEG {
		t.Fatalf("WithImageFormat must not mutate the shared layer")
	}
}

func TestTileURL_GlobeHasNoChannel(t *testing.T) {
	l := &Layer{
		ID:          "1",
		TargetURL:   "http://h/earth",
		RequestType: RequestImageryMaps,
		DBType:      DBType3D,
		ArgNames:    RequestImageryMaps.ArgNames(),
	}
	want := "http://h/earth/query?request=ImageryMaps&format=image/jpeg&x=0&y=0&z=0"
	if got := l.TileURL(0, 0, 0); got != want {
		t.Fatalf("url=%s want %s", got, want)
	}
}

func TestTileURL_VectorRasterArgs(t *testing.T) {
	l := &Layer{
		ID:          "7",
		TargetURL:   "http://h/map",
		RequestType: RequestVectorMapsRaster,
		DBType:      DBType2D,
		ArgNames:    RequestVectorMapsRaster.ArgNames(),
	}
	want := "http://h/map/query?request=VectorMapsRaster&format=image/png&channel=7&col=1&row=2&level=3"
	if got := l.TileURL(1, 2, 3); got != want {
		t.Fatalf("url=%s want %s", got, want)
	}
}

func TestFormats(t *testing.T) {
	img := &Layer{RequestType: RequestImageryMaps}
	if !img.Produces(FormatJPEG) || !img.Produces(FormatPNG) {
		t.Fatalf("imagery should produce jpeg and png")
	}
	vec := &Layer{RequestType: RequestVectorMapsRaster}
	if vec.Produces(FormatJPEG) || !vec.Produces(FormatPNG) {
		t.Fatalf("vector raster should produce png only")
	}
	if IsKnownFormat("image/gif") {
		t.Fatalf("gif is not supported")
	}
}
