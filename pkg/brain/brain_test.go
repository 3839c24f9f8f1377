package brain

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/vexlink/pkg/l0/comm"
)

const cmdDrive CommandID = 0x0100

// fakeBrain answers commands on an in-process link.
type fakeBrain struct {
	silent map[CommandID]bool

	lock  sync.Mutex
	posts [][]byte
}

func (b *fakeBrain) Connect(ctx context.Context) (io.ReadWriteCloser, error) {
	host, dev := net.Pipe()
	go b.serve(dev)
	return host, nil
}

func (b *fakeBrain) serve(conn net.Conn) {
	var parser comm.Parser
	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		parser.Feed(buf[:n], func(f *comm.Frame) {
			cmd, msg, ok := ParsePayload(f.Payload)
			if !ok {
				return
			}
			reply := b.handle(cmd, msg)
			if reply == nil {
				return
			}
			out, _ := (&comm.Frame{Endpoint: f.Endpoint, Payload: reply}).Bytes()
			conn.Write(out)
		})
		if err != nil {
			return
		}
	}
}

func (b *fakeBrain) handle(cmd CommandID, msg []byte) []byte {
	switch {
	case cmd == CmdDebug:
		return msg
	case cmd == cmdDrive:
		b.lock.Lock()
		b.posts = append(b.posts, append([]byte(nil), msg...))
		b.lock.Unlock()
		return nil
	case b.silent[cmd]:
		return nil
	}
	return []byte(fmt.Sprintf("%s=%s", cmd, msg))
}

func (b *fakeBrain) posted() [][]byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([][]byte(nil), b.posts...)
}

func startBrain(t *testing.T, b *fakeBrain) (*comm.Transport, *Client) {
	tr := comm.NewTransport(b)
	tr.WriteInterval = time.Millisecond
	client := NewClient(DefaultEndpointID)
	client.Timeout = time.Second
	require.NoError(t, tr.Register(client.Endpoint))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return tr, client
}

func TestPayload(t *testing.T) {
	testCases := []struct {
		name   string
		cmd    CommandID
		msg    []byte
		expect []byte
	}{
		{"debug", CmdDebug, []byte("hi"), []byte{0xab, 0xa0, 'h', 'i'}},
		{"no message", 0xA1A0, nil, []byte{0xa1, 0xa0}},
		{"motor", 0xA0A3, []byte("2"), []byte{0xa0, 0xa3, '2'}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := Payload(tc.cmd, tc.msg)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, payload)
			cmd, msg, ok := ParsePayload(payload)
			require.True(t, ok)
			assert.Equal(t, tc.cmd, cmd)
			assert.Equal(t, string(tc.msg), string(msg))
		})
	}

	_, err := Payload(CmdDebug, make([]byte, MaxMessageSize+1))
	assert.Equal(t, comm.ErrPayloadTooLarge, err)
	_, _, ok := ParsePayload([]byte{1})
	assert.False(t, ok)
	assert.Equal(t, "0xABA0", CmdDebug.String())
}

func TestFloatMessage(t *testing.T) {
	msg, err := FloatMessage(1, -2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0xf0, 0x3f, 0, 0, 0, 0, 0, 0, 0, 0xc0}, msg)
	_, err = FloatMessage(1, math.NaN())
	assert.Equal(t, comm.ErrNotFinite, err)
}

func TestClientDebug(t *testing.T) {
	_, client := startBrain(t, &fakeBrain{})
	reply, err := client.Debug("test message")
	require.NoError(t, err)
	assert.Equal(t, "test message", reply)

	reply, err = client.GetText(0xA0A0, "0")
	require.NoError(t, err)
	assert.Equal(t, "0xA0A0=0", reply)
}

func TestClientTimeout(t *testing.T) {
	_, client := startBrain(t, &fakeBrain{silent: map[CommandID]bool{0xA0A0: true}})
	client.Timeout = 20 * time.Millisecond
	client.Endpoint.LateWindow = 50 * time.Millisecond
	_, err := client.Get(0xA0A0, []byte("0"))
	assert.Equal(t, comm.ErrTimedOut, err)

	// the lost response no longer claims the next one.
	time.Sleep(60 * time.Millisecond)
	client.Timeout = time.Second
	reply, err := client.Debug("after timeout")
	require.NoError(t, err)
	assert.Equal(t, "after timeout", reply)
}

func TestClientPost(t *testing.T) {
	b := &fakeBrain{}
	_, client := startBrain(t, b)
	require.NoError(t, client.Post(cmdDrive, []byte("fwd")))
	require.NoError(t, client.PostFloats(cmdDrive, 1.5))
	require.Eventually(t, func() bool {
		return len(b.posted()) == 2
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, [][]byte{[]byte("fwd"), {0, 0, 0, 0, 0, 0, 0xf8, 0x3f}}, b.posted())

	assert.Equal(t, comm.ErrNotFinite, client.PostFloats(cmdDrive, math.Inf(1)))
}

func TestReadMotor(t *testing.T) {
	tr, _ := startBrain(t, &fakeBrain{silent: map[CommandID]bool{0xA0AA: true}})
	data, err := ReadMotor(tr.Registry, 3, 300*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, data, len(MotorFields))
	for _, field := range MotorFields {
		val, ok := data[field.Name]
		require.True(t, ok, field.Name)
		if field.Name == "Temperature" {
			assert.Nil(t, val)
			continue
		}
		require.NotNil(t, val, field.Name)
		assert.Equal(t, field.Command.String()+"=3", *val)
	}
	assert.Equal(t, 1, tr.Registry.Len(), "only the client endpoint stays registered")

	_, err = ReadMotor(tr.Registry, 42, time.Millisecond)
	assert.Equal(t, ErrUnknownMotor, err)
}

func TestMotorNumbers(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, MotorNumbers())
	assert.Len(t, MotorFields, 17)
}
