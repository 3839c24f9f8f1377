package env

import (
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/robotalks/vexlink/pkg/l0/comm"
	"github.com/robotalks/vexlink/pkg/l0/device"
	"github.com/robotalks/vexlink/pkg/l0/diag"
)

// Env is the link stack built from Config.
type Env struct {
	Config    *Config
	Transport *comm.Transport
	Metrics   *prometheus.Registry

	sinksLock sync.Mutex
	sinks     diag.MultiSink
}

// NewEnumerator creates the device enumerator.
func (c *Config) NewEnumerator() device.Enumerator {
	if c.Device.Path != "" {
		return device.StaticEnumerator{c.Device.Path}
	}
	if c.Device.Enumerator == "" || c.Device.Enumerator == EnumeratorUSB {
		return device.USBEnumerator{}
	}
	return &device.CommandEnumerator{Path: c.Device.Enumerator}
}

// NewConnector creates the Connector discovering and opening the device.
func (c *Config) NewConnector() *device.Discoverer {
	opener := device.NewLinkOpener()
	if c.Device.BaudRate > 0 {
		opener.Mode.BaudRate = c.Device.BaudRate
	}
	d := device.NewDiscoverer(c.NewEnumerator(), opener)
	if c.Device.Path != "" {
		// a configured path is used as is.
		d.VendorMarker, d.ClassTag = "", ""
	} else {
		d.VendorMarker, d.ClassTag = c.Device.VendorMarker, c.Device.ClassTag
	}
	return d
}

// NewEnv creates the Env. The transport is not started.
func (c *Config) NewEnv() (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	e := &Env{Config: c, Metrics: prometheus.NewRegistry()}
	e.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t := comm.NewTransport(c.NewConnector())
	t.WriteInterval = c.Link.WriteInterval
	t.ReadSize = c.Link.ReadSize
	t.Backoff = comm.BackoffConfig{Initial: c.Link.BackoffInitial, Max: c.Link.BackoffMax}
	t.Metrics = comm.NewMetrics(e.Metrics, c.Metrics.Namespace)
	e.Transport = t

	if c.Diag.File.Path != "" {
		e.AddSink(diag.NewFileSink(c.Diag.File))
	}
	if c.Diag.Console {
		e.AddSink(diag.NewLineSink(diag.GlogLines("device: ")))
	}
	return e, nil
}

// AddSink adds a diagnostic sink. It must be called before the
// transport runs.
func (e *Env) AddSink(w io.Writer) {
	e.sinksLock.Lock()
	defer e.sinksLock.Unlock()
	e.sinks = append(e.sinks, w)
	sinks := make(diag.MultiSink, len(e.sinks))
	copy(sinks, e.sinks)
	e.Transport.Sink = sinks
}

// Close releases sinks.
func (e *Env) Close() error {
	e.sinksLock.Lock()
	defer e.sinksLock.Unlock()
	if err := e.sinks.Close(); err != nil {
		glog.Warningf("close sinks: %v", err)
		return err
	}
	return nil
}
