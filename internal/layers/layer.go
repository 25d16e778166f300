// Package layers discovers the WMS layers a backend target publishes and
// builds the tile URLs used to render them.
package layers

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mohammed-shakir/gee-wms/internal/projection"
)

type DBType string

const (
	DBType2D         DBType = "gemap"
	DBType3D         DBType = "gedb"
	DBTypePortable2D DBType = "glm"
	DBTypePortable3D DBType = "glb"
)

func (t DBType) Supported() bool {
	switch t {
	case DBType2D, DBType3D, DBTypePortable2D, DBTypePortable3D:
		return true
	}
	return false
}

// Is3D reports whether the database is a globe; only its "Imagery" layer
// can be served as a map.
func (t DBType) Is3D() bool { return t == DBType3D || t == DBTypePortable3D }

type RequestType string

const (
	RequestImageryMaps         RequestType = "ImageryMaps"
	RequestImageryMapsMercator RequestType = "ImageryMapsMercator"
	RequestVectorMapsRaster    RequestType = "VectorMapsRaster"
)

// TileArgNames are the query argument names the backend expects for a tile
// column, row and level.
type TileArgNames struct {
	X, Y, Z string
}

func (rt RequestType) ArgNames() TileArgNames {
	if rt == RequestVectorMapsRaster {
		return TileArgNames{X: "col", Y: "row", Z: "level"}
	}
	return TileArgNames{X: "x", Y: "y", Z: "z"}
}

const (
	FormatJPEG = "image/jpeg"
	FormatPNG  = "image/png"
)

// KnownFormats are the output formats the adapter can encode.
var KnownFormats = []string{FormatJPEG, FormatPNG}

func IsKnownFormat(f string) bool { return slices.Contains(KnownFormats, f) }

// Layer is one renderable layer of a backend target. Layers held by a
// Snapshot are shared; use WithImageFormat to get a per-request copy.
type Layer struct {
	Name        string
	ID          string
	Label       string
	TargetURL   string
	Projection  projection.Projection
	RequestType RequestType
	DBType      DBType
	// Version is empty when the backend did not report one.
	Version  string
	ArgNames TileArgNames
	IsPng    bool

	format string
}

// Formats lists the image types the backend will serve for this layer.
// Vector rasters are transparent PNG overlays.
func (l *Layer) Formats() []string {
	if l.RequestType == RequestVectorMapsRaster {
		return []string{FormatPNG}
	}
	return KnownFormats
}

func (l *Layer) Produces(format string) bool { return slices.Contains(l.Formats(), format) }

func (l *Layer) DefaultFormat() string {
	if l.IsPng || l.RequestType == RequestVectorMapsRaster {
		return FormatPNG
	}
	return FormatJPEG
}

// ImageFormat is the MIME type tile URLs ask the backend for.
func (l *Layer) ImageFormat() string {
	if l.format == "" {
		return l.DefaultFormat()
	}
	return l.format
}

// WithImageFormat returns a copy of l that requests tiles as format.
func (l *Layer) WithImageFormat(format string) *Layer {
	cp := *l
	cp.format = format
	return &cp
}

// MapBaseURL is the tile URL without the tile address arguments.
func (l *Layer) MapBaseURL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/query?request=%s&format=%s", l.TargetURL, l.RequestType, l.ImageFormat())
	if l.DBType == DBType2D {
		fmt.Fprintf(&b, "&channel=%s", l.ID)
		if l.Version != "" {
			fmt.Fprintf(&b, "&version=%s", l.Version)
		}
	}
	return b.String()
}

func (l *Layer) TileURL(x, y, z int) string {
	return fmt.Sprintf("%s&%s=%d&%s=%d&%s=%d", l.MapBaseURL(), l.ArgNames.X, x, l.ArgNames.Y, y, l.ArgNames.Z, z)
}

// Snapshot is the immutable set of layers of one target at one point in time.
type Snapshot struct {
	TargetURL  string
	DBType     DBType
	Projection projection.Projection
	FetchedAt  time.Time

	byName map[string]*Layer
	names  []string
}

func (s *Snapshot) Lookup(name string) (*Layer, bool) {
	l, ok := s.byName[name]
	return l, ok
}

// Layers returns the layers ordered by name.
func (s *Snapshot) Layers() []*Layer {
	out := make([]*Layer, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.byName[n])
	}
	return out
}

func (s *Snapshot) Len() int { return len(s.byName) }
