package brain

import (
	"time"

	"github.com/robotalks/vexlink/pkg/l0/comm"
)

// DefaultTimeout is how long Get waits for the response.
const DefaultTimeout = 5 * time.Second

// DefaultEndpointID is the endpoint of the main command client.
const DefaultEndpointID comm.EndpointID = 1

// Client issues commands over an endpoint. Like the endpoint itself, a
// Client supports one outstanding Get at a time.
type Client struct {
	Endpoint *comm.Endpoint
	Timeout  time.Duration
}

// NewClient creates a Client with its own endpoint. The endpoint must be
// registered to a transport before use.
func NewClient(id comm.EndpointID) *Client {
	return &Client{Endpoint: comm.NewEndpoint(id), Timeout: DefaultTimeout}
}

// Get sends a command and waits for the response message.
func (c *Client) Get(cmd CommandID, msg []byte) ([]byte, error) {
	payload, err := Payload(cmd, msg)
	if err != nil {
		return nil, err
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return c.Endpoint.Request(payload, timeout)
}

// GetText is Get with the response decoded as text.
func (c *Client) GetText(cmd CommandID, msg string) (string, error) {
	data, err := c.Get(cmd, []byte(msg))
	if err != nil {
		return "", err
	}
	return comm.DecodeText(data), nil
}

// Post sends a command without waiting for a response.
func (c *Client) Post(cmd CommandID, msg []byte) error {
	payload, err := Payload(cmd, msg)
	if err != nil {
		return err
	}
	return c.Endpoint.Send(payload)
}

// PostFloats posts a command carrying encoded numbers.
func (c *Client) PostFloats(cmd CommandID, vals ...float64) error {
	msg, err := FloatMessage(vals...)
	if err != nil {
		return err
	}
	return c.Post(cmd, msg)
}

// Debug sends a debug message which the brain echoes.
func (c *Client) Debug(msg string) (string, error) {
	return c.GetText(CmdDebug, msg)
}
