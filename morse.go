package main

// Streaming Morse decoder. Input is a run of per-block dB magnitudes;
// output is a run of mark/space symbols annotated with age, SNR and,
// once matched, decoded text. The decoder carries no hidden state: a
// caller resumes a stream by handing the same symbol slice back in,
// so arbitrarily fragmented delivery decodes the same as one call.

const (
	morseASCIIMin = ' '
	morseASCIIMax = '\x7F'

	// Longest dot/dash pattern in the code table.
	morseLengthMax = 10

	morseHistogramMax = 0x1000
)

// Element lengths in dits, per the PARIS convention.
const (
	morseDit    = 1
	morseDah    = 3
	morseTid    = 1
	morseLetter = 3

	// PARIS: .--. .- .-. .. ...  10xDit(+1) 4xDah(+3) 9xSpace(-1) 4xLspace(-3) 1xWspace(-7) -> 50
	morseParisDits = 50
)

// Code indices. Space is deliberately last: the matcher walks codes
// until the first zero-length expansion, and space expands to nothing.
const (
	morseCode0 = iota
	morseCode1
	morseCode2
	morseCode3
	morseCode4
	morseCode5
	morseCode6
	morseCode7
	morseCode8
	morseCode9
	morseCodeA
	morseCodeB
	morseCodeC
	morseCodeD
	morseCodeE
	morseCodeF
	morseCodeG
	morseCodeH
	morseCodeI
	morseCodeJ
	morseCodeK
	morseCodeL
	morseCodeM
	morseCodeN
	morseCodeO
	morseCodeP
	morseCodeQ
	morseCodeR
	morseCodeS
	morseCodeT
	morseCodeU
	morseCodeV
	morseCodeW
	morseCodeX
	morseCodeY
	morseCodeZ
	morseCodePeriod
	morseCodeComma
	morseCodeQuestion
	morseCodeApostrophe
	morseCodeSlash
	morseCodeBracketOpen
	morseCodeBracketClose
	morseCodeColon
	morseCodeEqual
	morseCodePlus
	morseCodeDash
	morseCodeQuote
	morseCodeAt
	morseCodeExclamation
	morseCodeAmpersand
	morseCodeSemicolon
	morseCodeUnderscore
	morseCodeDollar
	morseCodeSpace

	morseCodeNone
	morseCodeMax = morseCodeNone
)

var morseCodes = [morseCodeMax]string{
	/* 0123456789 */
	"-----", ".----", "..---", "...--", "....-",
	".....", "-....", "--...", "---..", "----.",
	/* ABCDEFGHIJKLMNOPQRSTUVWXYZ */
	".-", "-...", "-.-.", "-..", ".",
	"..-.", "--.", "....", "..", ".---",
	"-.-", ".-..", "--", "-.", "---",
	".--.", "--.-", ".-.", "...", "-",
	"..-", "...-", ".--", "-..-", "-.--",
	"--..",
	/* .,?'/():=+-"@ */
	".-.-.-", "--..--", "..--..", ".----.", "-..-.",
	"-.--.", "-.--.-", "---...", "-...-", ".-.-.",
	"-....-", ".-..-.", ".--.-.",
	/* !&;_$ */
	"-.-.--", ".-...", "-.-.-.", "..--.-", "...-..-",

	/* space is last */
	"/",
}

// morseASCII maps printable ASCII (offset by morseASCIIMin) to codes.
var morseASCII = [morseASCIIMax - morseASCIIMin + 1]int{
	/*  !"#$%&'()*+,-./ */
	morseCodeSpace,
	morseCodeExclamation,
	morseCodeQuote,
	morseCodeNone,
	morseCodeDollar,
	morseCodeNone,
	morseCodeAmpersand,
	morseCodeApostrophe,
	morseCodeBracketOpen,
	morseCodeBracketClose,
	morseCodeNone,
	morseCodePlus,
	morseCodeComma,
	morseCodeDash,
	morseCodePeriod,
	morseCodeSlash,

	/* 0123456789:;<=>? */
	morseCode0,
	morseCode1,
	morseCode2,
	morseCode3,
	morseCode4,
	morseCode5,
	morseCode6,
	morseCode7,
	morseCode8,
	morseCode9,
	morseCodeColon,
	morseCodeSemicolon,
	morseCodeBracketOpen,
	morseCodeEqual,
	morseCodeBracketClose,
	morseCodeQuestion,

	/* @ABCDEFGHIJKLMNO */
	morseCodeAt,
	morseCodeA,
	morseCodeB,
	morseCodeC,
	morseCodeD,
	morseCodeE,
	morseCodeF,
	morseCodeG,
	morseCodeH,
	morseCodeI,
	morseCodeJ,
	morseCodeK,
	morseCodeL,
	morseCodeM,
	morseCodeN,
	morseCodeO,

	/* PQRSTUVWXYZ[\]^_ */
	morseCodeP,
	morseCodeQ,
	morseCodeR,
	morseCodeS,
	morseCodeT,
	morseCodeU,
	morseCodeV,
	morseCodeW,
	morseCodeX,
	morseCodeY,
	morseCodeZ,
	morseCodeBracketOpen,
	morseCodeNone,
	morseCodeBracketClose,
	morseCodeNone,
	morseCodeUnderscore,

	/* `abcdefghijklmno */
	morseCodeApostrophe,
	morseCodeA,
	morseCodeB,
	morseCodeC,
	morseCodeD,
	morseCodeE,
	morseCodeF,
	morseCodeG,
	morseCodeH,
	morseCodeI,
	morseCodeJ,
	morseCodeK,
	morseCodeL,
	morseCodeM,
	morseCodeN,
	morseCodeO,

	/* pqrstuvwxyz{|}~DEL */
	morseCodeP,
	morseCodeQ,
	morseCodeR,
	morseCodeS,
	morseCodeT,
	morseCodeU,
	morseCodeV,
	morseCodeW,
	morseCodeX,
	morseCodeY,
	morseCodeZ,
	morseCodeBracketOpen,
	morseCodeNone,
	morseCodeBracketClose,
	morseCodeNone,
	morseCodeNone,
}

// Symbol is one mark and its following space within a sub-channel,
// in analyser blocks. Age counts blocks from the end of the run back
// to the start of this symbol. Text carries the decoded character
// once the matcher has assigned one; Whitespace is the word or line
// hint derived from an oversized trailing space.
type Symbol struct {
	Age   int
	Mark  int
	Space int

	SNR        DB
	Text       byte
	Whitespace byte
}

// Fist is a sender's characteristic timing, in analyser blocks.
type Fist struct {
	Dit    int
	Dah    int
	Tid    int
	Letter int
}

// NewFist returns a fist at one word per minute of 50-dit words, i.e.
// unit timings.
func NewFist() *Fist {
	f := &Fist{}
	f.SetWPM(morseParisDits, 1, 1)
	return f
}

// SetWPM derives element durations from a words-per-minute rate.
// farnsworthWPM stretches inter-character gaps independently.
func (f *Fist) SetWPM(samplesPerMin, wpm, farnsworthWPM int) {
	if f == nil || wpm <= 0 || farnsworthWPM <= 0 {
		return
	}
	f.Dit = (morseDit * samplesPerMin) / (wpm * morseParisDits)
	f.Dah = (morseDah * samplesPerMin) / (wpm * morseParisDits)
	f.Tid = (morseTid * samplesPerMin) / (wpm * morseParisDits)
	f.Letter = (morseLetter * samplesPerMin) / (farnsworthWPM * morseParisDits)
}

// WPM converts the fist back to a words-per-minute rate, zero if the
// fist is not yet estimated.
func (f *Fist) WPM(samplesPerMin int) int {
	if f == nil || f.Dit <= 0 || f.Dah <= 0 || f.Letter <= 0 {
		return 0
	}

	// One PARIS word: 10 dits, 4 dahs, 10 tids, 6 letter gaps.
	return samplesPerMin / (f.Dit*10 + f.Dah*4 + f.Tid*(9+1) + f.Letter*(4+2))
}

func morseFromASCII(character byte) int {
	if character >= morseASCIIMin && character <= morseASCIIMax && morseASCII[character-morseASCIIMin] != morseCodeNone {
		return morseASCII[character-morseASCIIMin]
	}

	// all out-of-range ASCII is whitespace
	return morseCodeSpace
}

func morseToASCII(code int) byte {
	if code != morseCodeNone {
		for i := 0; i < morseASCIIMax-morseASCIIMin; i++ {
			if morseASCII[i] == code {
				return byte(i + morseASCIIMin)
			}
		}
	}

	return 0
}

// morseCodeOnOff expands a code into its ideal mark/space run under
// the given fist. The last space absorbs the letter gap. Space itself
// expands to nothing.
func morseCodeOnOff(onoff []Symbol, code int, fist *Fist) int {
	var temp [morseLengthMax]Symbol

	if len(onoff) < morseLengthMax {
		onoff = temp[:]
	}

	if code == morseCodeNone {
		code = morseCodeQuestion
	}

	if code == morseCodeSpace {
		return 0
	}

	ret := 0
	for i := 0; i < len(morseCodes[code]); i++ {
		switch morseCodes[code][i] {
		case '.':
			onoff[ret].Mark = fist.Dit
			onoff[ret].Space = fist.Tid
		case '-':
			onoff[ret].Mark = fist.Dah
			onoff[ret].Space = fist.Tid
		}
		ret++
	}

	if ret > 0 {
		onoff[ret-1].Space += fist.Letter
	}

	return ret
}

// Decode extends the symbol run in output with the magnitudes in
// input, then matches text over the whole run. A zero threshold
// selects the histogram-derived channel-local threshold. A zeroed (or
// nil) fist is estimated from the observed run; if the first matching
// pass averages under three symbols per group the fist is rebuilt and
// matching runs once more. Returns the number of live symbols.
func Decode(output []Symbol, input []DB, threshold DB, fist *Fist) int {
	if threshold == 0 {
		threshold = morseDecodeThreshold(input)
	}

	ret := morseDecodeOnOff(output, input, threshold)

	if ret > 10 {
		if fist == nil {
			fist = &Fist{}
		}

		if fist.Dit == 0 || fist.Dah == 0 || fist.Tid == 0 || fist.Letter == 0 {
			morseDecodeFist(fist, output)
		}

		if morseDecodeText(output, fist) != 0 {
			morseDecodeFist(fist, output)
			morseDecodeText(output, fist)
		}
	}

	return ret
}

// morseDecodeLength counts the live (non-empty) symbols heading the run.
func morseDecodeLength(output []Symbol) int {
	ret := 0
	for ret < len(output) && (output[ret].Mark != 0 || output[ret].Space != 0) {
		ret++
	}
	return ret
}

// morseDecodeOnOff thresholds input into mark/space run lengths,
// continuing the run already present in output, then recomputes ages
// so each symbol's age accumulates everything younger than it.
func morseDecodeOnOff(output []Symbol, input []DB, threshold DB) int {
	if threshold == 0 {
		threshold = 3
	}

	ret := morseDecodeLength(output)
	for i := ret; i < len(output); i++ {
		output[i] = Symbol{}
	}

	var mark bool
	if ret == 0 {
		// an empty run opens in the mark state
		mark = true
	} else {
		ret--
		mark = output[ret].Space == 0
	}

	for _, in := range input {
		if in > threshold {
			if !mark {
				ret++
			}
			mark = true
		} else {
			mark = false
		}

		if ret < len(output) {
			if mark {
				output[ret].Mark++
			} else {
				output[ret].Space++
			}

			output[ret].SNR = in
			output[ret].Age = output[ret].Mark + output[ret].Space
		}
	}

	start := ret
	if start >= len(output) {
		start = len(output) - 1
	}
	for i := start; i >= 0; i-- {
		if i+1 < len(output) {
			output[i].Age = output[i].Mark + output[i].Space + output[i+1].Age
		} else {
			output[i].Age = output[i].Mark + output[i].Space
		}
	}

	return ret + 1
}

// morseDecodeFist estimates element timings from the observed run:
// a histogram of mark lengths splits at its mean into dit and dah
// modes, then spaces shorter than dit+dah split the same way into tid
// and letter. The space estimates are finally overwritten with
// mark-derived values, which decodes real operators better.
func morseDecodeFist(fist *Fist, input []Symbol) {
	if fist == nil {
		return
	}

	*fist = Fist{}

	var histogram [morseHistogramMax]int
	average, count := 0, 0
	for i := 0; i < len(input) && input[i].Age != 0; i++ {
		if m := input[i].Mark; m != 0 {
			if m < len(histogram) {
				histogram[m]++
			}
			average += m
			count++
		}
	}

	if count == 0 {
		return
	}
	average = (average + count/2) / count

	for i := len(histogram) - 1; i > 0; i-- {
		if i <= average && histogram[i] >= histogram[fist.Dit] {
			fist.Dit = i
		} else if i > average && histogram[i] >= histogram[fist.Dah] {
			fist.Dah = i
		}
	}

	/* sanity check marks */
	switch {
	case fist.Dit == 0:
		if fist.Dah > 1 {
			fist.Dit = (fist.Dah + 2) / 3
		} else {
			fist.Dah = 0
		}
	case fist.Dah == 0:
		fist.Dah = fist.Dit * 3
	case fist.Dah < fist.Dit*3:
		fist.Dah = fist.Dit * 3
	}

	if fist.Dit == 0 || fist.Dah == 0 {
		return
	}

	for i := range histogram {
		histogram[i] = 0
	}
	average, count = 0, 0
	for i := 0; i < len(input) && input[i].Age != 0; i++ {
		if s := input[i].Space; s != 0 && s < fist.Dit+fist.Dah {
			if s < len(histogram) {
				histogram[s]++
			}
			average += s
			count++
		}
	}

	if count > 0 {
		average = (average + count/2) / count

		for i := len(histogram) - 1; i > 0; i-- {
			if i < average && histogram[i] > histogram[fist.Tid] {
				fist.Tid = i
			} else if i >= average && histogram[i] >= histogram[fist.Letter] {
				fist.Letter = i
			}
		}
	}

	/* sanity check spaces */
	if fist.Tid == 0 {
		fist.Tid = fist.Dit
	}

	if fist.Letter < fist.Tid*3 {
		fist.Letter = fist.Tid * 3
	}

	// overwrite spaces with mark-derived values because it gives
	// better decodes of real people :-)
	fist.Tid = fist.Dit
	fist.Letter = (fist.Tid*5 + 1) / 2
}

// morseDecodeText matches the symbol run against the code table,
// greedily grouping symbols up to the first letter gap and scoring
// each same-length code by summed squared timing error. Returns the
// count of unmatched groups, or -1 to signal the caller that the fist
// should be re-estimated (matched groups averaged under three
// symbols, or nothing matched at all).
func morseDecodeText(output []Symbol, fist *Fist) int {
	var matches [morseCodeMax][morseLengthMax]Symbol
	var matchLengths [morseCodeMax]int

	for i := range output {
		output[i].Text = 0
		output[i].Whitespace = 0
	}

	for i := 0; i < morseCodeMax; i++ {
		matchLengths[i] = morseCodeOnOff(matches[i][:], i, fist)
	}

	count := morseDecodeLength(output)

	ret := 0
	averageLength, hits := 0, 0

	for tones := 0; tones < count; tones++ {
		best := morseCodeMax
		bestScore := 0

		letters := 0
		for letters < morseLengthMax && tones+letters < count && output[tones+letters].Space < fist.Letter {
			letters++
		}
		letters++

		for i := 0; i < morseCodeMax && matchLengths[i] != 0; i++ {
			if matchLengths[i] != letters || tones+matchLengths[i] > count {
				continue
			}

			score := 0
			for j := 0; j < matchLengths[i]; j++ {
				x := output[tones+j].Mark - matches[i][j].Mark
				score += x * x
				x = output[tones+j].Space - matches[i][j].Space
				score += x * x
			}

			if best == morseCodeMax || score < bestScore {
				bestScore = score
				best = i
			}
		}

		if best < morseCodeMax {
			averageLength += matchLengths[best]
			hits++

			tones += matchLengths[best] - 1
			output[tones].Text = morseToASCII(best)

			x := output[tones].Space
			if x > fist.Letter*4 {
				output[tones].Whitespace = '\n'
			} else if x >= fist.Letter*2 {
				output[tones].Whitespace = ' '
			}
		} else {
			ret++
		}
	}

	if hits == 0 || averageLength/hits < 3 {
		ret = -1
	}

	return ret
}

// morseDecodeThreshold derives a channel-local threshold from raw
// magnitudes: the midpoint of the modal bins below and above the mean.
func morseDecodeThreshold(input []DB) DB {
	if len(input) == 0 {
		return 0
	}

	var histogram [1 << 8]int

	total := 0
	for _, in := range input {
		histogram[in]++
		total += int(in)
	}

	total = (total + len(input)/2) / len(input)

	hi, hiBest, lo, loBest := 0, 0, 0, 0
	for i, n := range histogram {
		if i < total {
			if n > loBest {
				loBest = n
				lo = i
			}
		} else {
			if n > hiBest {
				hiBest = n
				hi = i
			}
		}
	}

	return DB((hi + lo) / 2)
}

// Encode writes the on/off magnitude run for a string: mark bytes for
// each dit and dah, zeros for the gaps. Unmapped ASCII keys as
// whitespace. Returns the full run length even when output is short.
func Encode(output []DB, mark DB, s string, fist *Fist) int {
	if fist == nil {
		return 0
	}

	ret := 0
	emit := func(n int, v DB) {
		for i := 0; i < n; i++ {
			if ret < len(output) {
				output[ret] = v
			}
			ret++
		}
	}

	for k := 0; k < len(s); k++ {
		code := morseFromASCII(s[k])

		if k > 0 && code == morseCodeSpace {
			emit(fist.Tid+fist.Letter, 0)
			continue
		}

		pattern := morseCodes[code]
		for j := 0; j < len(pattern); j++ {
			if j > 0 {
				emit(fist.Tid, 0)
			}

			switch pattern[j] {
			case '.':
				emit(fist.Dit, mark)
			case '-':
				emit(fist.Dah, mark)
			}
		}

		emit(fist.Letter, 0)
	}

	return ret
}

// SymbolText projects decoded characters and whitespace hints out of
// a symbol run into text. Returns the character count even when text
// is short.
func SymbolText(text []byte, symbols []Symbol) int {
	for i := range text {
		text[i] = 0
	}

	ret := 0
	for i := range symbols {
		if symbols[i].Text == 0 {
			continue
		}

		if ret+1 < len(text) {
			text[ret] = symbols[i].Text
		}
		ret++

		if symbols[i].Whitespace != 0 {
			if ret+1 < len(text) {
				text[ret] = symbols[i].Whitespace
			}
			ret++
		}
	}

	return ret
}

// Trim drops symbols from the head of the run until trimCharacters
// emitted characters (whitespace included) are gone. Returns the
// count of characters remaining.
func Trim(output []Symbol, trimCharacters int) int {
	last := -1
	chars := 0

	for i := 0; i < len(output) && (output[i].Mark != 0 || output[i].Space != 0); i++ {
		if output[i].Text == 0 {
			continue
		}

		if chars < trimCharacters {
			last = i
		}
		chars++
		if output[i].Whitespace != 0 {
			chars++
		}
	}

	if trimCharacters == 0 || last < 0 {
		return chars
	}

	if chars <= trimCharacters {
		for i := range output {
			output[i] = Symbol{}
		}
		return 0
	}

	n := copy(output, output[last+1:])
	for i := n; i < len(output); i++ {
		output[i] = Symbol{}
	}

	return chars - trimCharacters
}

// TrimAge drops every symbol older than age from the head of the run
// and returns the number of characters that went with them.
func TrimAge(output []Symbol, age int) int {
	ret := 0
	for i := 0; i < len(output) && output[i].Age > age; i++ {
		if output[i].Text != 0 {
			ret++
			if output[i].Whitespace != 0 {
				ret++
			}
		}
	}

	if ret != 0 {
		Trim(output, ret)
	}

	return ret
}
