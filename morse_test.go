package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const morseTestString = "The quick brown fox jumps over the lazy dog.\n" +
	"THE QUICK BROWN FOX JUMPS OVER THE LAZY DOG!\n" +
	"The first numbers in the Fibonacci sequence are:" +
	" 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144, 233, 377, 610\n"

const morseTestOut = "THE QUICK BROWN FOX JUMPS OVER THE LAZY DOG. " +
	"THE QUICK BROWN FOX JUMPS OVER THE LAZY DOG! " +
	"THE FIRST NUMBERS IN THE FIBONACCI SEQUENCE ARE:" +
	" 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144, 233, 377, 610 "

// 8 kHz capture, 128-sample blocks.
const morseTestSamplesPerMin = (60 * 8000) / 128

func symbolString(symbols []Symbol) string {
	text := make([]byte, len(symbols)*2+2)
	n := SymbolText(text, symbols)
	if n >= len(text) {
		n = len(text) - 1
	}
	return string(text[:n])
}

func TestMorseCodeLengths(t *testing.T) {
	for code := 0; code < morseCodeMax; code++ {
		assert.Less(t, len(morseCodes[code]), morseLengthMax, "code %d %q", code, morseCodes[code])
	}
}

func TestFistWPM(t *testing.T) {
	fist := NewFist()
	require.NotNil(t, fist)

	assert.Equal(t, 75, fist.WPM(morseTestSamplesPerMin))

	fist.SetWPM(morseTestSamplesPerMin, 25, 25)
	assert.Equal(t, 25, fist.WPM(morseTestSamplesPerMin))

	fist.SetWPM(morseTestSamplesPerMin, 75, 75)
	assert.Equal(t, 75, fist.WPM(morseTestSamplesPerMin))
}

func TestEncodeParis(t *testing.T) {
	fist := &Fist{Dit: 1, Dah: 3, Tid: 1, Letter: 3}

	signal := make([]DB, 100)
	count := Encode(signal, 0xFF, "PARIS ", fist)

	// one PARIS plus its word gap is 50 dit-times
	assert.Equal(t, morseParisDits, count)

	decode := make([]Symbol, 100)
	rx := &Fist{}
	Decode(decode, signal[:count], 0, rx)

	assert.Equal(t, "PARIS ", symbolString(decode))
}

func TestDecodeSilence(t *testing.T) {
	input := make([]DB, 1024)
	decode := make([]Symbol, 1024)

	count := Decode(decode, input, 0, &Fist{})

	assert.LessOrEqual(t, count, 1)
	for i := range decode {
		assert.Zero(t, decode[i].Mark, "entry %d has a mark", i)
	}
	assert.Empty(t, symbolString(decode))
}

func TestEncodeDecodeParagraph(t *testing.T) {
	fist := NewFist()

	signal := make([]DB, 10000)
	count := Encode(signal, 0x80, morseTestString, fist)
	require.Greater(t, count, 0)
	require.Less(t, count, len(signal))

	decode := make([]Symbol, 10000)
	*fist = Fist{}
	symbols := Decode(decode, signal[:count], 0, fist)
	require.Greater(t, symbols, 0)

	assert.Equal(t, morseDit, fist.Dit)
	assert.Equal(t, morseDah, fist.Dah)
	assert.Equal(t, morseTid, fist.Tid)
	assert.Equal(t, morseLetter, fist.Letter)

	assert.Equal(t, morseTestOut, symbolString(decode))
}

func TestDecodeFragmented(t *testing.T) {
	fist := &Fist{Dit: 1, Dah: 3, Tid: 1, Letter: 3}

	signal := make([]DB, 10000)
	count := Encode(signal, 0x80, morseTestString, fist)
	require.Greater(t, count, 0)

	r := rand.New(rand.NewSource(5))

	decode := make([]Symbol, 10000)
	for i := 0; i < count; {
		fragment := r.Intn(16)
		if i+fragment > count {
			fragment = count - i
		}
		Decode(decode, signal[i:i+fragment], 3, fist)
		i += fragment
	}

	assert.Equal(t, morseTestOut, symbolString(decode))
}

func TestTrim(t *testing.T) {
	fist := &Fist{Dit: 1, Dah: 3, Tid: 1, Letter: 3}

	signal := make([]DB, 10000)
	count := Encode(signal, 0x80, morseTestString, fist)

	decode := make([]Symbol, 10000)
	Decode(decode, signal[:count], 0, fist)
	require.Equal(t, morseTestOut, symbolString(decode))

	// "THE" plus its word space
	assert.NotZero(t, Trim(decode, 3))
	assert.Equal(t, morseTestOut[4:], symbolString(decode))

	// "QUICK" plus its word space
	assert.NotZero(t, Trim(decode, 6))
	assert.Equal(t, morseTestOut[10:], symbolString(decode))

	// "BROWN" plus its word space
	assert.NotZero(t, Trim(decode, 6))
	assert.Equal(t, morseTestOut[16:], symbolString(decode))

	// everything else
	assert.Zero(t, Trim(decode, len(morseTestOut)-16))
	assert.Empty(t, symbolString(decode))
}

func TestTrimAge(t *testing.T) {
	fist := &Fist{Dit: 1, Dah: 3, Tid: 1, Letter: 3}

	signal := make([]DB, 10000)
	count := Encode(signal, 0x80, morseTestString, fist)

	decode := make([]Symbol, 10000)
	Decode(decode, signal[:count], 0, fist)
	require.Equal(t, morseTestOut, symbolString(decode))

	// nothing is older than the whole run
	assert.Zero(t, TrimAge(decode, 100000))
	assert.Equal(t, morseTestOut, symbolString(decode))

	removed := TrimAge(decode, 2000)
	assert.NotZero(t, removed)
	assert.Equal(t, morseTestOut[removed:], symbolString(decode))

	// the cut lands on a letter boundary, so retained symbols may
	// lead the threshold by at most one letter group
	groupSpan := morseLengthMax*(fist.Dah+fist.Tid) + fist.Letter
	if decode[0].Age > 2000+groupSpan {
		t.Fatalf("leading symbol age %d after TrimAge(2000)", decode[0].Age)
	}
}

func TestDecodeRematch(t *testing.T) {
	// Encode with unit timings but hand the decoder a wildly wrong
	// fist: the first matching pass fails, the decoder re-estimates
	// from the observed run, and the second pass output is retained.
	fist := &Fist{Dit: 1, Dah: 3, Tid: 1, Letter: 3}

	signal := make([]DB, 10000)
	count := Encode(signal, 0x80, morseTestString, fist)

	decode := make([]Symbol, 10000)
	wrong := &Fist{Dit: 7, Dah: 21, Tid: 7, Letter: 17}
	Decode(decode, signal[:count], 0, wrong)

	assert.Equal(t, 1, wrong.Dit)
	assert.Equal(t, 3, wrong.Dah)
	assert.Equal(t, morseTestOut, symbolString(decode))
}

func testCallsign(r *rand.Rand) string {
	callsign := make([]byte, 0, 8)

	callsign = append(callsign, byte('A'+r.Intn(26)))
	if r.Intn(2) == 0 {
		callsign = append(callsign, byte('A'+r.Intn(26)))
	}
	callsign = append(callsign, byte('0'+r.Intn(10)))
	callsign = append(callsign, byte('A'+r.Intn(26)))
	callsign = append(callsign, byte('A'+r.Intn(26)))
	if r.Intn(2) == 0 {
		callsign = append(callsign, byte('A'+r.Intn(26)))
	}
	callsign = append(callsign, ' ')

	return string(callsign)
}

// testNoise decodes 100 random callsigns under additive uniform noise
// and returns the per-mille decode rate.
func testNoise(r *rand.Rand, percentNoise int) int {
	txFist := &Fist{Dit: 3, Dah: 9, Tid: 3, Letter: 9}

	decoded := 0
	for i := 0; i < 100; i++ {
		callsign := testCallsign(r)

		signal := make([]DB, 2048)
		length := Encode(signal, 0xFF, callsign, txFist)

		noisy := make([]DB, length)
		for j := 0; j < length; j++ {
			noisy[j] = DBFromPower(uint64(signal[j])*100 + uint64(r.Intn(256)*percentNoise))
		}

		decode := make([]Symbol, length)
		rxFist := &Fist{}
		Decode(decode, noisy, 0, rxFist)

		rx := make([]byte, 10)
		SymbolText(rx, decode)

		end := 0
		for end < len(rx) && rx[end] != 0 {
			end++
		}

		if string(rx[:end]) == callsign {
			decoded++
		}
	}

	return decoded * 10
}

func TestDecodeNoise(t *testing.T) {
	if testing.Short() {
		t.Skip("noise calibration is slow")
	}

	r := rand.New(rand.NewSource(1))

	thresholds := []struct {
		percent  int
		perMille int
	}{
		{0, 990},
		{1, 990},
		{3, 990},
		{5, 990},
		{7, 990},
		{10, 900},
		{15, 900},
		{20, 900},
		{25, 900},
		{30, 900},
		{50, 900},
		{70, 600},
		{90, 500},
	}

	for _, tc := range thresholds {
		rate := testNoise(r, tc.percent)
		assert.GreaterOrEqual(t, rate, tc.perMille, "%d%% noise decoded %d/1000", tc.percent, rate)
	}
}
