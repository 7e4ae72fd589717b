package main

import (
	"math"
	"sync"
)

// The block analyser runs entirely in integer arithmetic. Phase is a
// 12-bit angle into a shared cosine table scaled to 0x0FFF; the table
// is built once, on first use, and is immutable afterwards.

const cos12Bits = 12

const cos12Size = 1 << cos12Bits

var (
	cos12Table [cos12Size]int
	cos12Once  sync.Once
)

func cos12Init() {
	for i := range cos12Table {
		cos12Table[i] = int(0x0FFF * math.Cos((2*math.Pi*float64(i))/cos12Size))
	}
}

// cos12 returns 0x0FFF*cos of a 12-bit angle. Any integer angle is
// accepted; it wraps modulo one turn.
func cos12(angle int) int {
	cos12Once.Do(cos12Init)
	return cos12Table[angle&(cos12Size-1)]
}

// sin12 is cos12 a quarter turn behind.
func sin12(angle int) int {
	return cos12(angle - cos12Size/4)
}
