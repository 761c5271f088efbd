package obj

import "strconv"

// NoIndex marks an omitted texcoord or normal reference.
const NoIndex int32 = -1

// FaceVertex holds the 1-based references of one face corner.
type FaceVertex struct {
	Position int32
	Texcoord int32
	Normal   int32
}

// FaceScanner yields face corners one at a time, continuing across the corners of
// the same `f` line before moving to the next one. Accepted corner forms are
// `p`, `p/t`, `p//n` and `p/t/n`. A malformed corner ends the sequence.
type FaceScanner struct {
	lines lineScanner
	body  []byte
	pos   int
	cur   FaceVertex
	done  bool
}

func NewFaceScanner(src []byte) *FaceScanner {
	return &FaceScanner{
		lines: lineScanner{src: src, keyword: []byte("f")},
	}
}

func (s *FaceScanner) Next() bool {
	if s.done {
		return false
	}
	for {
		for s.pos < len(s.body) && isBlank(s.body[s.pos]) {
			s.pos++
		}
		if s.pos < len(s.body) {
			break
		}
		body, ok := s.lines.nextRecord()
		if !ok {
			s.done = true
			return false
		}
		s.body, s.pos = body, 0
		for s.pos < len(s.body) && isBlank(s.body[s.pos]) {
			s.pos++
		}
		if s.pos == len(s.body) {
			// `f` with no corners
			s.done = true
			return false
		}
	}

	fv, ok := s.parseCorner()
	if !ok {
		s.done = true
		return false
	}
	s.cur = fv
	return true
}

func (s *FaceScanner) Value() FaceVertex {
	return s.cur
}

func (s *FaceScanner) parseCorner() (FaceVertex, bool) {
	fv := FaceVertex{Texcoord: NoIndex, Normal: NoIndex}

	p, ok := s.index()
	if !ok {
		return fv, false
	}
	fv.Position = p

	if s.peek('/') {
		s.pos++
		if !s.peek('/') && !s.atEnd() {
			t, ok := s.index()
			if !ok {
				return fv, false
			}
			fv.Texcoord = t
		}
		if s.peek('/') {
			s.pos++
			if !s.atEnd() {
				n, ok := s.index()
				if !ok {
					return fv, false
				}
				fv.Normal = n
			}
		}
	}
	return fv, s.atEnd()
}

// index parses an unsigned decimal at the cursor.
func (s *FaceScanner) index() (int32, bool) {
	start := s.pos
	for s.pos < len(s.body) && isDigit(s.body[s.pos]) {
		s.pos++
	}
	if start == s.pos {
		return 0, false
	}
	v, err := strconv.ParseInt(string(s.body[start:s.pos]), 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(v), true
}

func (s *FaceScanner) peek(c byte) bool {
	return s.pos < len(s.body) && s.body[s.pos] == c
}

// atEnd reports whether the cursor sits at the end of a corner token.
func (s *FaceScanner) atEnd() bool {
	return s.pos == len(s.body) || isBlank(s.body[s.pos])
}

// scanFaces drains the face stream.
func scanFaces(src []byte) []FaceVertex {
	var out []FaceVertex
	s := NewFaceScanner(src)
	for s.Next() {
		out = append(out, s.Value())
	}
	return out
}
