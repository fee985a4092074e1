package api

// Direction is used by truncation and padding configuration. The zero
// value is Right, the usual default for both.
type Direction uint8

const (
	Right Direction = iota
	Left
)

// NoWord marks a position of an Encoding that does not belong to any input
// word (special tokens, padding).
const NoWord = -1

// Encoding is the result of encoding one input (or one input pair): parallel
// sequences describing every produced token position.
type Encoding struct {
	IDs               []int
	TypeIDs           []int
	Tokens            []string
	WordIDs           []int // index of the source word per position, NoWord for specials/padding
	Offsets           []Offsets
	SpecialTokensMask []int
	AttentionMask     []int

	// Overflowing holds the tail encodings produced by truncation, each a
	// full Encoding covering the part that did not fit.
	Overflowing []Encoding
}

// Len returns the number of token positions.
func (e *Encoding) Len() int { return len(e.IDs) }

// IsEmpty reports whether the encoding holds no positions.
func (e *Encoding) IsEmpty() bool { return len(e.IDs) == 0 }

// NewEncoding builds an encoding from tokens, assigning the given type id to
// every position and deriving the default masks.
func NewEncoding(tokens []Token, typeID int, wordIDs []int) *Encoding {
	n := len(tokens)
	e := &Encoding{
		IDs:               make([]int, n),
		TypeIDs:           make([]int, n),
		Tokens:            make([]string, n),
		WordIDs:           make([]int, n),
		Offsets:           make([]Offsets, n),
		SpecialTokensMask: make([]int, n),
		AttentionMask:     make([]int, n),
	}
	for i, tok := range tokens {
		e.IDs[i] = tok.ID
		e.TypeIDs[i] = typeID
		e.Tokens[i] = tok.Value
		e.Offsets[i] = tok.Offsets
		e.AttentionMask[i] = 1
		if wordIDs != nil {
			e.WordIDs[i] = wordIDs[i]
		} else {
			e.WordIDs[i] = NoWord
		}
	}
	return e
}

// Merge appends other to e, position by position. Offsets are kept in each
// part's own referential; word indices of other are shifted past the last
// word of e when shiftWords is set.
func (e *Encoding) Merge(other *Encoding, shiftWords bool) {
	shift := 0
	if shiftWords {
		for _, w := range e.WordIDs {
			if w != NoWord && w >= shift {
				shift = w + 1
			}
		}
	}
	e.IDs = append(e.IDs, other.IDs...)
	e.TypeIDs = append(e.TypeIDs, other.TypeIDs...)
	e.Tokens = append(e.Tokens, other.Tokens...)
	e.Offsets = append(e.Offsets, other.Offsets...)
	e.SpecialTokensMask = append(e.SpecialTokensMask, other.SpecialTokensMask...)
	e.AttentionMask = append(e.AttentionMask, other.AttentionMask...)
	for _, w := range other.WordIDs {
		if w != NoWord {
			w += shift
		}
		e.WordIDs = append(e.WordIDs, w)
	}
	e.Overflowing = append(e.Overflowing, other.Overflowing...)
}

// slice returns a copy of positions [start, end) without overflow.
func (e *Encoding) slice(start, end int) Encoding {
	out := Encoding{
		IDs:               append([]int(nil), e.IDs[start:end]...),
		TypeIDs:           append([]int(nil), e.TypeIDs[start:end]...),
		Tokens:            append([]string(nil), e.Tokens[start:end]...),
		WordIDs:           append([]int(nil), e.WordIDs[start:end]...),
		Offsets:           append([]Offsets(nil), e.Offsets[start:end]...),
		SpecialTokensMask: append([]int(nil), e.SpecialTokensMask[start:end]...),
		AttentionMask:     append([]int(nil), e.AttentionMask[start:end]...),
	}
	return out
}

// Truncate cuts the encoding down to maxLen positions. The removed tail (or
// head, when direction is Left) is re-emitted as overflowing encodings of up
// to maxLen positions each, overlapping the previous window by stride.
func (e *Encoding) Truncate(maxLen, stride int, direction Direction) {
	if maxLen <= 0 || e.Len() <= maxLen {
		return
	}
	if stride >= maxLen {
		stride = maxLen - 1
	}

	total := e.Len()
	var kept Encoding
	var rest []Encoding
	step := maxLen - stride
	switch direction {
	case Right:
		kept = e.slice(0, maxLen)
		for start := step; start < total; start += step {
			end := start + maxLen
			if end > total {
				end = total
			}
			rest = append(rest, e.slice(start, end))
			if end == total {
				break
			}
		}
	case Left:
		kept = e.slice(total-maxLen, total)
		for end := total - step; end > 0; end -= step {
			start := end - maxLen
			if start < 0 {
				start = 0
			}
			rest = append(rest, e.slice(start, end))
			if start == 0 {
				break
			}
		}
	}
	overflow := e.Overflowing
	*e = kept
	e.Overflowing = append(rest, overflow...)
}

// Pad grows the encoding to targetLen positions using the given padding
// token. Padding positions carry attention mask 0 and the special mask set.
func (e *Encoding) Pad(targetLen, padID, padTypeID int, padToken string, direction Direction) {
	for i := range e.Overflowing {
		e.Overflowing[i].Pad(targetLen, padID, padTypeID, padToken, direction)
	}
	missing := targetLen - e.Len()
	if missing <= 0 {
		return
	}
	ids := make([]int, missing)
	typeIDs := make([]int, missing)
	tokens := make([]string, missing)
	words := make([]int, missing)
	offsets := make([]Offsets, missing)
	special := make([]int, missing)
	attention := make([]int, missing)
	for i := 0; i < missing; i++ {
		ids[i] = padID
		typeIDs[i] = padTypeID
		tokens[i] = padToken
		words[i] = NoWord
		special[i] = 1
	}
	if direction == Left {
		e.IDs = append(ids, e.IDs...)
		e.TypeIDs = append(typeIDs, e.TypeIDs...)
		e.Tokens = append(tokens, e.Tokens...)
		e.WordIDs = append(words, e.WordIDs...)
		e.Offsets = append(offsets, e.Offsets...)
		e.SpecialTokensMask = append(special, e.SpecialTokensMask...)
		e.AttentionMask = append(attention, e.AttentionMask...)
		return
	}
	e.IDs = append(e.IDs, ids...)
	e.TypeIDs = append(e.TypeIDs, typeIDs...)
	e.Tokens = append(e.Tokens, tokens...)
	e.WordIDs = append(e.WordIDs, words...)
	e.Offsets = append(e.Offsets, offsets...)
	e.SpecialTokensMask = append(e.SpecialTokensMask, special...)
	e.AttentionMask = append(e.AttentionMask, attention...)
}
