package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// Calibration pairs that must hold bit-for-bit in both directions.
var dbCalibration = []struct {
	power uint64
	db    DB
}{
	{1, 0},
	{2, 3},
	{10, 10},
	{16, 12},
	{20, 13},
	{25, 14},
	{32, 15},
	{40, 16},
	{50, 17},
	{100, 20},
}

func TestDBCalibration(t *testing.T) {
	for _, pair := range dbCalibration {
		assert.Equal(t, pair.db, DBFromPower(pair.power), "DBFromPower(%d)", pair.power)
		assert.Equal(t, pair.power, DBToPower(pair.db), "DBToPower(%d)", pair.db)
	}
}

func TestDBFromPowerSmall(t *testing.T) {
	assert.Equal(t, DB(0), DBFromPower(0))
	assert.Equal(t, DB(0), DBFromPower(1))
	assert.Equal(t, DB(3), DBFromPower(2))
	assert.Equal(t, DB(5), DBFromPower(3))
	assert.Equal(t, DB(6), DBFromPower(4))
}

func TestDBFromPowerMonotone(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Uint64Range(4, 1<<60).Draw(t, "a")
		b := rapid.Uint64Range(a, 1<<60).Draw(t, "b")

		if DBFromPower(a) > DBFromPower(b) {
			t.Fatalf("DBFromPower(%d)=%d > DBFromPower(%d)=%d", a, DBFromPower(a), b, DBFromPower(b))
		}
	})
}

func TestDBRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.Uint64Range(4, 1<<60).Draw(t, "x")

		back := DBToPower(DBFromPower(x))

		// within +-30% of the original
		if back*10 < x*7 || back*10 > x*13 {
			t.Fatalf("DBToPower(DBFromPower(%d)) = %d", x, back)
		}
	})
}

func TestDBInverseRoundTrip(t *testing.T) {
	for y := DB(0); y <= 180; y++ {
		got := DBFromPower(DBToPower(y))
		assert.InDelta(t, float64(y), float64(got), 1, "DBFromPower(DBToPower(%d))", y)
	}
}
