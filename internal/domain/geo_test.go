package domain

import (
	"math"
	"slices"
	"testing"
)

func TestDistanceKmSymmetry(t *testing.T) {
	points := []Coordinates{
		{Lat: 50.85, Lon: 4.35},
		{Lat: 50.86, Lon: 4.36},
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 40.7128, Lon: -74.0060},
		{Lat: 0, Lon: 179.9},
		{Lat: 0, Lon: -179.9},
	}

	for _, a := range points {
		if d := DistanceKm(a, a); d != 0 {
			t.Fatalf("DistanceKm(%v, %v) = %f, want 0", a, a, d)
		}
		for _, b := range points {
			if ab, ba := DistanceKm(a, b), DistanceKm(b, a); math.Abs(ab-ba) > 1e-9 {
				t.Fatalf("asymmetric distance %v <-> %v: %f vs %f", a, b, ab, ba)
			}
		}
	}
}

func TestDistanceKmKnownValues(t *testing.T) {
	// Brussels -> Antwerp is roughly 41 km as the crow flies.
	brussels := Coordinates{Lat: 50.8503, Lon: 4.3517}
	antwerp := Coordinates{Lat: 51.2194, Lon: 4.4025}
	if d := DistanceKm(brussels, antwerp); math.Abs(d-41.2) > 0.5 {
		t.Fatalf("Brussels-Antwerp = %f km, want about 41.2", d)
	}

	// One degree of latitude along a meridian.
	a := Coordinates{Lat: 0, Lon: 0}
	b := Coordinates{Lat: 1, Lon: 0}
	if d, want := DistanceKm(a, b), EarthRadiusKm*math.Pi/180; math.Abs(d-want) > 1e-9 {
		t.Fatalf("one degree of latitude = %f km, want %f", d, want)
	}

	// Crossing the antimeridian is short, not half the globe.
	east := Coordinates{Lat: 0, Lon: 179.9}
	west := Coordinates{Lat: 0, Lon: -179.9}
	if d := DistanceKm(east, west); d >= 25 {
		t.Fatalf("antimeridian crossing = %f km, want < 25", d)
	}
}

func TestBearingDegrees(t *testing.T) {
	origin := Coordinates{Lat: 0, Lon: 0}
	cases := []struct {
		to   Coordinates
		want float64
	}{
		{Coordinates{Lat: 1, Lon: 0}, 0},
		{Coordinates{Lat: 0, Lon: 1}, 90},
		{Coordinates{Lat: -1, Lon: 0}, 180},
		{Coordinates{Lat: 0, Lon: -1}, 270},
	}
	for _, c := range cases {
		if got := BearingDegrees(origin, c.to); math.Abs(got-c.want) > 1e-6 {
			t.Fatalf("bearing to %v = %f, want %f", c.to, got, c.want)
		}
	}
}

func TestBoundedSpeedKmh(t *testing.T) {
	speed := func(v float64) *float64 { return &v }

	cases := []struct {
		p    LocationPoint
		max  float64
		want float64
	}{
		{LocationPoint{}, 200, 0},
		{LocationPoint{SpeedKmh: speed(-3)}, 200, 0},
		{LocationPoint{SpeedKmh: speed(42.5)}, 200, 42.5},
		{LocationPoint{SpeedKmh: speed(900)}, 200, 200},
		{LocationPoint{SpeedKmh: speed(900)}, 0, 900},
	}
	for i, c := range cases {
		if got := BoundedSpeedKmh(c.p, c.max); got != c.want {
			t.Fatalf("case %d: got %f, want %f", i, got, c.want)
		}
	}
}

func TestCoordinatesValid(t *testing.T) {
	if !(Coordinates{Lat: 50.85, Lon: 4.35}).Valid() {
		t.Fatalf("Brussels should be valid")
	}
	if (Coordinates{Lat: 91, Lon: 0}).Valid() || (Coordinates{Lat: 0, Lon: -181}).Valid() {
		t.Fatalf("out-of-range coordinates reported valid")
	}
	if got := (Coordinates{Lat: 50.85, Lon: 4.35}).CoordsToList(); !slices.Equal(got, []float64{4.35, 50.85}) {
		t.Fatalf("CoordsToList = %v, want [4.35 50.85]", got)
	}
}
