package comm

// Parser parses bytes received.
type Parser struct {
	state   parseState
	frame   *Frame
	recvLen int
}

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	// Frame is set when a complete frame is decoded.
	Frame *Frame
	// IsRaw indicates Raw is a byte outside of any frame.
	IsRaw bool
	Raw   byte
	// Dropped is set when an in-progress frame is discarded.
	Dropped bool
}

type parseState int

const (
	statePreamble1 parseState = iota // waiting for 0xAA, everything else is raw
	statePreamble2                   // waiting for 0x55
	statePreamble3                   // waiting for 0x1E
	stateLength                      // waiting for length (payload + 2)
	stateEndpointHi                  // waiting for endpoint id high byte
	stateEndpointLo                  // waiting for endpoint id low byte
	statePayload                     // waiting for payload bytes
	stateTrailer                     // waiting for 0xC6
)

// Reset discards any in-progress frame.
func (p *Parser) Reset() {
	p.state, p.frame, p.recvLen = statePreamble1, nil, 0
}

// InFrame indicates if the parser is in the middle of a frame.
func (p *Parser) InFrame() bool {
	return p.state >= stateLength
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	switch p.state {
	case statePreamble1:
		if b == Preamble1 {
			p.state = statePreamble2
			return
		}
		pr.IsRaw, pr.Raw = true, b
	case statePreamble2:
		if b == Preamble2 {
			p.state = statePreamble3
			return
		}
		p.abortPreamble(b, &pr)
	case statePreamble3:
		if b == Preamble3 {
			p.state = stateLength
			return
		}
		p.abortPreamble(b, &pr)
	case stateLength:
		if b < 2 {
			return p.drop()
		}
		p.frame = &Frame{}
		if n := int(b) - 2; n > 0 {
			p.frame.Payload = make([]byte, n)
		}
		p.recvLen = 0
		p.state = stateEndpointHi
	case stateEndpointHi:
		p.frame.Endpoint = EndpointID(b) << 8
		p.state = stateEndpointLo
	case stateEndpointLo:
		p.frame.Endpoint |= EndpointID(b)
		if len(p.frame.Payload) == 0 {
			p.state = stateTrailer
		} else {
			p.state = statePayload
		}
	case statePayload:
		p.frame.Payload[p.recvLen] = b
		p.recvLen++
		if p.recvLen >= len(p.frame.Payload) {
			p.state = stateTrailer
		}
	case stateTrailer:
		if b != Trailer {
			return p.drop()
		}
		pr.Frame, p.frame = p.frame, nil
		p.state = statePreamble1
	}
	return
}

// Feed parses a chunk of bytes. emit is called for each decoded frame
// and raw receives all bytes outside of frames in one slice.
func (p *Parser) Feed(chunk []byte, emit func(*Frame)) (raw []byte, dropped int) {
	for _, b := range chunk {
		pr := p.Parse(b)
		switch {
		case pr.Frame != nil:
			if emit != nil {
				emit(pr.Frame)
			}
		case pr.IsRaw:
			raw = append(raw, pr.Raw)
		case pr.Dropped:
			dropped++
		}
	}
	return
}

// abortPreamble handles an unexpected byte inside the preamble. The byte
// is raw text unless it starts a new preamble.
func (p *Parser) abortPreamble(b byte, pr *ParseResult) {
	if b == Preamble1 {
		p.state = statePreamble2
		return
	}
	p.state = statePreamble1
	pr.IsRaw, pr.Raw = true, b
}

func (p *Parser) drop() (pr ParseResult) {
	p.Reset()
	pr.Dropped = true
	return
}
