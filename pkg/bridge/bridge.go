// Package bridge relays brain commands between an MQTT broker and the
// link. Requests and responses are protobuf envelopes from
// pkg/proto/vexlink/v1.
package bridge

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/vexlink/pkg/brain"
	"github.com/robotalks/vexlink/pkg/l0/comm"
	"github.com/robotalks/vexlink/pkg/l0/diag"
	pb "github.com/robotalks/vexlink/pkg/proto/vexlink/v1"
)

// Topics relative to the device name.
const (
	TopicRequest     = "req"
	TopicResponse    = "res"
	TopicMotorQuery  = "motor"
	TopicMotorReport = "motor/report"
	TopicLog         = "log"
)

// Defaults.
const (
	DefaultTimeout      = brain.DefaultTimeout
	DefaultMotorMaxWait = time.Second
	// MaxTimeout caps timeout_ms from requests.
	MaxTimeout = time.Minute
)

// DefaultPostEndpointID is the endpoint used for commands without reply.
const DefaultPostEndpointID comm.EndpointID = 2

// Bridge relays requests from PubSub to the link.
type Bridge struct {
	PubSub   PubSub
	Device   string
	Registry *comm.Registry

	post *brain.Client
}

// New creates a Bridge and registers its endpoint for posts.
func New(ps PubSub, device string, registry *comm.Registry) (*Bridge, error) {
	b := &Bridge{
		PubSub:   ps,
		Device:   device,
		Registry: registry,
		post:     brain.NewClient(DefaultPostEndpointID),
	}
	if err := registry.Register(b.post.Endpoint); err != nil {
		return nil, err
	}
	return b, nil
}

// Topic returns the full topic of the device.
func (b *Bridge) Topic(name string) string {
	return b.Device + "/" + name
}

// Run subscribes request topics until ctx is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	reqSub, err := b.PubSub.Subscribe(b.Topic(TopicRequest), b.onRequest)
	if err != nil {
		return err
	}
	defer reqSub.Close()
	motorSub, err := b.PubSub.Subscribe(b.Topic(TopicMotorQuery), b.onMotorQuery)
	if err != nil {
		return err
	}
	defer motorSub.Close()
	glog.Infof("bridge serving %s", b.Topic("#"))
	<-ctx.Done()
	return ctx.Err()
}

// LogSink returns a sink publishing diagnostic text lines.
func (b *Bridge) LogSink() io.Writer {
	topic := b.Topic(TopicLog)
	return diag.NewLineSink(func(line string) {
		if err := b.PubSub.Publish(topic, []byte(line)); err != nil {
			glog.V(1).Infof("publish log error: %v", err)
		}
	})
}

func (b *Bridge) onRequest(_ string, payload []byte) {
	var req pb.Request
	if err := proto.Unmarshal(payload, &req); err != nil {
		glog.Warningf("bad request: %v", err)
		return
	}
	// handlers are invoked on the client's dispatch path.
	go func() {
		if res := b.HandleRequest(&req); res != nil {
			b.publish(b.Topic(TopicResponse), res)
		}
	}()
}

func (b *Bridge) onMotorQuery(_ string, payload []byte) {
	var query pb.MotorQuery
	if err := proto.Unmarshal(payload, &query); err != nil {
		glog.Warningf("bad motor query: %v", err)
		return
	}
	go b.publish(b.Topic(TopicMotorReport), b.HandleMotorQuery(&query))
}

func (b *Bridge) publish(topic string, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err == nil {
		err = b.PubSub.Publish(topic, data)
	}
	if err != nil {
		glog.Warningf("publish %s error: %v", topic, err)
	}
}

// HandleRequest issues the command. It returns nil for NoReply requests
// which are posted successfully.
func (b *Bridge) HandleRequest(req *pb.Request) *pb.Response {
	res := &pb.Response{Seq: req.Seq}
	cmd := brain.CommandID(req.Command)
	if req.Command > 0xffff {
		res.Error = "invalid command"
		return res
	}
	if req.NoReply {
		if err := b.post.Post(cmd, req.Message); err != nil {
			res.Error = err.Error()
			return res
		}
		return nil
	}

	payload, err := brain.Payload(cmd, req.Message)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultTimeout
	} else if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	// each request gets its own endpoint so concurrent requests
	// don't share correlation.
	result := b.Registry.MultiRequest([][]byte{payload}, timeout)[0]
	switch {
	case result.Err == nil:
		res.Message = result.Data
	case result.TimedOut():
		res.TimedOut = true
	default:
		res.Error = result.Err.Error()
	}
	return res
}

// HandleMotorQuery reads motor telemetry.
func (b *Bridge) HandleMotorQuery(query *pb.MotorQuery) *pb.MotorReport {
	report := &pb.MotorReport{
		Seq:   query.Seq,
		Motor: query.Motor,
		Name:  brain.MotorNames[int(query.Motor)],
	}
	maxWait := time.Duration(query.MaxWaitMs) * time.Millisecond
	if maxWait <= 0 {
		maxWait = DefaultMotorMaxWait
	} else if maxWait > MaxTimeout {
		maxWait = MaxTimeout
	}
	data, err := brain.ReadMotor(b.Registry, int(query.Motor), maxWait)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	for _, field := range brain.MotorFields {
		val := &pb.MotorValue{Name: field.Name}
		if v := data[field.Name]; v != nil {
			val.Value, val.Present = *v, true
		}
		report.Values = append(report.Values, val)
	}
	return report
}
