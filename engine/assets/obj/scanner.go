package obj

import (
	"bytes"
	"strconv"
)

// lineScanner walks the records of one OBJ keyword. A record is a line whose first
// non-blank token is the keyword followed by a space or a tab.
type lineScanner struct {
	src     []byte
	keyword []byte
	pos     int
}

// nextRecord returns the body of the next matching line, without the keyword, a
// trailing comment or the line terminator. ok is false once the source is exhausted.
func (l *lineScanner) nextRecord() (body []byte, ok bool) {
	for l.pos < len(l.src) {
		start := l.pos
		end := bytes.IndexByte(l.src[start:], '\n')
		if end < 0 {
			end = len(l.src)
		} else {
			end += start
		}
		l.pos = end + 1

		line := l.src[start:end]
		i := 0
		for i < len(line) && isBlank(line[i]) {
			i++
		}
		line = line[i:]
		if len(line) > len(l.keyword) && bytes.HasPrefix(line, l.keyword) && isBlank(line[len(l.keyword)]) {
			body := line[len(l.keyword)+1:]
			if c := bytes.IndexByte(body, '#'); c >= 0 {
				body = body[:c]
			}
			return body, true
		}
	}
	return nil, false
}

// CoordScanner yields fixed-arity float tuples for one coordinate keyword.
// It is single pass: once Next returns false it stays false.
type CoordScanner struct {
	lines lineScanner
	arity int
	cur   [3]float32
	done  bool
}

func NewCoordScanner(src []byte, keyword string, arity int) *CoordScanner {
	if arity < 1 || arity > 3 {
		panic("obj: coordinate arity must be 1, 2 or 3")
	}
	return &CoordScanner{
		lines: lineScanner{src: src, keyword: []byte(keyword)},
		arity: arity,
	}
}

// Next advances to the next record. A record with fewer numbers than the arity
// ends the sequence.
func (s *CoordScanner) Next() bool {
	if s.done {
		return false
	}
	body, ok := s.lines.nextRecord()
	if !ok {
		s.done = true
		return false
	}
	p := 0
	for i := 0; i < s.arity; i++ {
		start, end := nextNumber(body, p)
		if start < 0 {
			s.done = true
			return false
		}
		v, err := strconv.ParseFloat(string(body[start:end]), 32)
		if err != nil {
			s.done = true
			return false
		}
		s.cur[i] = float32(v)
		p = end
	}
	return true
}

// Value is the current tuple. Only the first arity elements are meaningful.
func (s *CoordScanner) Value() []float32 {
	return s.cur[:s.arity]
}

// scanCoords drains a scanner into a flat slice.
func scanCoords(src []byte, keyword string, arity int) []float32 {
	var out []float32
	s := NewCoordScanner(src, keyword, arity)
	for s.Next() {
		out = append(out, s.Value()...)
	}
	return out
}

// nextNumber finds the next numeric run in b at or after p: an optional sign, digits
// and dots, and an optional exponent. It returns -1 when none is left.
func nextNumber(b []byte, p int) (int, int) {
	for p < len(b) && !startsNumber(b[p]) {
		p++
	}
	if p == len(b) {
		return -1, -1
	}
	start := p
	if b[p] == '-' || b[p] == '+' {
		p++
	}
	for p < len(b) && (isDigit(b[p]) || b[p] == '.') {
		p++
	}
	if p < len(b) && (b[p] == 'e' || b[p] == 'E') {
		q := p + 1
		if q < len(b) && (b[q] == '-' || b[q] == '+') {
			q++
		}
		if q < len(b) && isDigit(b[q]) {
			p = q
			for p < len(b) && isDigit(b[p]) {
				p++
			}
		}
	}
	return start, p
}

func startsNumber(c byte) bool {
	return isDigit(c) || c == '-' || c == '+' || c == '.'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}
