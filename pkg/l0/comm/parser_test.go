package comm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

type parseOutput struct {
	frames  []Frame
	raw     []byte
	dropped int
}

func parseAll(p *Parser, in []byte) (out parseOutput) {
	raw, dropped := p.Feed(in, func(f *Frame) {
		out.frames = append(out.frames, *f)
	})
	out.raw, out.dropped = raw, dropped
	return
}

func TestParser(t *testing.T) {
	testCases := []struct {
		name    string
		in      []byte
		frames  []Frame
		raw     string
		dropped int
	}{
		{
			name:   "empty payload",
			in:     []byte{0xaa, 0x55, 0x1e, 2, 0, 1, 0xc6},
			frames: []Frame{{Endpoint: 1}},
		},
		{
			name:   "payload",
			in:     []byte{0xaa, 0x55, 0x1e, 4, 0xd6, 0xd8, '4', '2', 0xc6},
			frames: []Frame{{Endpoint: 55000, Payload: []byte("42")}},
		},
		{
			name:    "bad trailer then valid frame",
			in:      []byte{0xaa, 0x55, 0x1e, 0x03, 0x00, 0x01, 0x58, 0xff, 0xaa, 0x55, 0x1e, 0x02, 0x00, 0x01, 0xc6},
			frames:  []Frame{{Endpoint: 1}},
			dropped: 1,
		},
		{
			name:   "raw text around frames",
			in:     append(append([]byte("boot\n"), 0xaa, 0x55, 0x1e, 3, 0, 7, 'x', 0xc6), []byte("done")...),
			frames: []Frame{{Endpoint: 7, Payload: []byte("x")}},
			raw:    "boot\ndone",
		},
		{
			name: "broken preamble is raw",
			in:   []byte{0xaa, 'a', 0xaa, 0x55, 'b', 'c'},
			raw:  "abc",
		},
		{
			name:   "repeated preamble start",
			in:     []byte{0xaa, 0xaa, 0x55, 0x1e, 2, 0, 3, 0xc6},
			frames: []Frame{{Endpoint: 3}},
		},
		{
			name:    "invalid length",
			in:      []byte{0xaa, 0x55, 0x1e, 1, 'z', 0xaa, 0x55, 0x1e, 2, 0, 2, 0xc6},
			frames:  []Frame{{Endpoint: 2}},
			raw:     "z",
			dropped: 1,
		},
		{
			name:   "markers inside payload",
			in:     []byte{0xaa, 0x55, 0x1e, 5, 0, 9, 0xaa, 0x55, 0x1e, 0xc6},
			frames: []Frame{{Endpoint: 9, Payload: []byte{0xaa, 0x55, 0x1e}}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p Parser
			out := parseAll(&p, tc.in)
			require.Equal(t, tc.frames, out.frames)
			require.Equal(t, tc.raw, string(out.raw))
			require.Equal(t, tc.dropped, out.dropped)
			require.False(t, p.InFrame())
		})
	}
}

func TestParserRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for size := 0; size <= MaxPayloadSize; size++ {
		f := Frame{Endpoint: EndpointID(rng.Intn(0x10000)), Payload: make([]byte, size)}
		rng.Read(f.Payload)
		if size == 0 {
			f.Payload = nil
		}
		b, err := f.Bytes()
		require.NoError(t, err)
		var p Parser
		out := parseAll(&p, b)
		require.Equal(t, []Frame{f}, out.frames)
		require.Empty(t, out.raw)
	}
}

func TestParserChunkInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var stream []byte
	for len(stream) < 1000 {
		switch rng.Intn(4) {
		case 0:
			stream = append(stream, []byte("log line\n")...)
		case 1:
			f := Frame{Endpoint: EndpointID(rng.Intn(4)), Payload: make([]byte, rng.Intn(20))}
			rng.Read(f.Payload)
			stream, _ = f.AppendTo(stream)
			stream[len(stream)-1] = 0x00 // corrupt trailer
		default:
			f := Frame{Endpoint: EndpointID(rng.Intn(4)), Payload: make([]byte, 1+rng.Intn(20))}
			rng.Read(f.Payload)
			stream, _ = f.AppendTo(stream)
		}
	}
	stream = stream[:1000]

	var batch Parser
	expected := parseAll(&batch, stream)
	require.NotEmpty(t, expected.frames)

	var single Parser
	var actual parseOutput
	for _, b := range stream {
		out := parseAll(&single, []byte{b})
		actual.frames = append(actual.frames, out.frames...)
		actual.raw = append(actual.raw, out.raw...)
		actual.dropped += out.dropped
	}
	require.Equal(t, expected, actual)
}

func TestParserReset(t *testing.T) {
	var p Parser
	parseAll(&p, []byte{0xaa, 0x55, 0x1e, 4, 0, 1, 'a'})
	require.True(t, p.InFrame())
	p.Reset()
	require.False(t, p.InFrame())
	out := parseAll(&p, []byte{'b', 0xc6})
	require.Empty(t, out.frames)
	require.Equal(t, []byte{'b', 0xc6}, out.raw)
}

func TestParseResult(t *testing.T) {
	var p Parser
	pr := p.Parse('x')
	require.True(t, pr.IsRaw)
	require.Equal(t, byte('x'), pr.Raw)
	require.Nil(t, pr.Frame)

	for _, b := range []byte{0xaa, 0x55, 0x1e, 2, 0, 5} {
		require.Equal(t, ParseResult{}, p.Parse(b))
	}
	pr = p.Parse(0xc6)
	require.Equal(t, &Frame{Endpoint: 5}, pr.Frame)
	require.False(t, pr.IsRaw)
}
