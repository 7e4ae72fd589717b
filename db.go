package main

// DB is the fixed-point magnitude used throughout the signal path:
// approximately 3*log2(power), so one unit is about one real dB.
// Zero encodes powers of one or less.
type DB uint8

// dbMax is the largest magnitude representable from a 64-bit power.
const dbMax = 64 * 3

// dbToPowerTable holds 2^(i/10) scaled by 100, indexed by db modulo 10.
var dbToPowerTable = [10]uint64{100, 126, 158, 200, 251, 316, 399, 501, 631, 794}

// DBFromPower returns 3*log2(pow) rounded to the nearest unit.
//
// Small inputs are table driven; larger inputs normalise to a 3-bit
// mantissa and correct by the 4*2^(1/3) and 4*2^(2/3) breakpoints
// (5.03 and 6.35), which keeps the result within one unit everywhere.
func DBFromPower(pow uint64) DB {
	switch pow {
	case 0, 1:
		return 0
	case 2:
		return 3
	case 3:
		return 5
	case 4:
		return 6
	}

	bits := 0
	for bits < (dbMax/3)-1 && (pow>>bits) != 0 {
		bits++
	}

	mantissa := pow >> (bits - 3)
	ret := DB((bits - 1) * 3)

	if mantissa >= 6 {
		ret += 2
	} else if mantissa >= 5 {
		ret += 1
	}

	return ret
}

// DBToPower is the inverse of DBFromPower.
func DBToPower(db DB) uint64 {
	ret := dbToPowerTable[db%10]

	switch {
	case db < 10:
		ret = (ret + 50) / 100
	case db < 20:
		ret = (ret + 5) / 10
	default:
		for db >= 30 {
			ret *= 10
			db -= 10
		}
	}

	return ret
}
