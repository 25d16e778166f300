package projection

import (
	"math"
	"testing"

	"github.com/mohammed-shakir/gee-wms/internal/geom"
)

func TestMercator_RoundTrip(t *testing.T) {
	m := Mercator{}
	for _, ll := range []geom.Pair{{X: 0, Y: 0}, {X: -179.9, Y: 84}, {X: 12.5, Y: 55.6}, {X: 151.2, Y: -33.9}, {X: 180, Y: -85}} {
		back := m.Unproject(m.Project(ll))
		if math.Abs(back.X-ll.X) > 1e-9 || math.Abs(back.Y-ll.Y) > 1e-9 {
			t.Fatalf("round trip %v -> %v", ll, back)
		}
	}
}

func TestMercator_ClampsLatitude(t *testing.T) {
	m := Mercator{}
	pole := m.Project(geom.Pair{X: 0, Y: 90})
	edge := m.Project(geom.Pair{X: 0, Y: MercatorMaxLatitude})
	if pole.Y != edge.Y {
		t.Fatalf("lat 90 not clamped: %v vs %v", pole.Y, edge.Y)
	}
	if math.IsInf(pole.Y, 0) || math.IsNaN(pole.Y) {
		t.Fatalf("projected pole is not finite: %v", pole.Y)
	}
}

func TestMercator_WorldIsSquare(t *testing.T) {
	b := Mercator{}.InternalOuterBounds()
	if math.Abs(b.Width()-b.Height()) > 1e-3 {
		t.Fatalf("mercator world should be square, got %v", b.Extent())
	}
	if math.Abs(b.X1-20037508.342789244) > 1e-6 {
		t.Fatalf("x1=%v", b.X1)
	}
}

func TestFlat_InternalDiffersFromAdvertised(t *testing.T) {
	f := Flat{}
	in, adv := f.InternalOuterBounds(), f.AdvertisedOuterBounds()
	if in != geom.NewRect(-180, -180, 180, 180) {
		t.Fatalf("internal=%v", in)
	}
	if adv.Y0 != -90 || adv.Y1 != 90 {
		t.Fatalf("advertised=%v", adv)
	}
	if !in.Contains(adv) {
		t.Fatalf("internal bounds must contain advertised bounds")
	}
	p := geom.Pair{X: 12, Y: 34}
	if f.Project(p) != p || f.Unproject(p) != p {
		t.Fatalf("flat must be identity on degrees")
	}
}

func TestByNameAndHasCRS(t *testing.T) {
	if ByName("Mercator").Name() != "mercator" {
		t.Fatalf("mercator lookup failed")
	}
	if ByName("").Name() != "flat" {
		t.Fatalf("empty name should fall back to flat")
	}
	if ByName("identity").Name() != "identity" {
		t.Fatalf("identity lookup failed")
	}
	if !HasCRS(Mercator{}, "epsg:900913") {
		t.Fatalf("EPSG:900913 should match case-insensitively")
	}
	if HasCRS(Flat{}, "EPSG:3857") {
		t.Fatalf("flat must not claim EPSG:3857")
	}
}
