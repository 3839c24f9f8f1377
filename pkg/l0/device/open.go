package device

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
	"golang.org/x/net/websocket"
)

// Opener opens a device path.
type Opener interface {
	Open(ctx context.Context, path string) (io.ReadWriteCloser, error)
}

// OpenFunc is func type of Opener.
type OpenFunc func(ctx context.Context, path string) (io.ReadWriteCloser, error)

// Open implements Opener.
func (f OpenFunc) Open(ctx context.Context, path string) (io.ReadWriteCloser, error) {
	return f(ctx, path)
}

// OpenError is returned when a device path can't be opened.
type OpenError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpenError) Unwrap() error {
	return e.Err
}

// DefaultMode is the serial setting of the brain: 115200 8N1.
var DefaultMode = serial.Mode{
	BaudRate: 115200,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// DefaultOrigin is the Origin header of websocket relays.
const DefaultOrigin = "http://localhost/"

// LinkOpener opens serial ports. Paths with ws:// or wss:// scheme are
// dialed as websocket relays carrying the raw byte stream.
type LinkOpener struct {
	Mode   serial.Mode
	Origin string
}

// NewLinkOpener creates a LinkOpener with DefaultMode.
func NewLinkOpener() *LinkOpener {
	return &LinkOpener{Mode: DefaultMode, Origin: DefaultOrigin}
}

// Open implements Opener.
func (o *LinkOpener) Open(ctx context.Context, path string) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if IsRelay(path) {
		return o.openRelay(path)
	}
	mode := o.Mode
	if mode.BaudRate == 0 {
		mode = DefaultMode
	}
	port, err := serial.Open(path, &mode)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	return port, nil
}

func (o *LinkOpener) openRelay(path string) (io.ReadWriteCloser, error) {
	origin := o.Origin
	if origin == "" {
		origin = DefaultOrigin
	}
	conn, err := websocket.Dial(path, "", origin)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}

// IsRelay tells whether path is a websocket relay URL.
func IsRelay(path string) bool {
	return strings.HasPrefix(path, "ws://") || strings.HasPrefix(path, "wss://")
}
