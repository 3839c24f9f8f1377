package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/vexlink/pkg/bridge"
	fx "github.com/robotalks/vexlink/pkg/framework"
	"github.com/robotalks/vexlink/pkg/env"
)

var flags = env.SetupFlags(flag.CommandLine)

func metricsServer(e *env.Env) fx.Runnable {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.Metrics, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: e.Config.Metrics.Addr, Handler: mux}
	return fx.RunFunc(func(ctx context.Context) error {
		glog.Infof("metrics on %s", server.Addr)
		return fx.RunWithContextCloser(ctx, server, func() error {
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	})
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, err := flags.Load()
	if err != nil {
		log.Fatalln(err)
	}
	e, err := conf.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	defer e.Close()

	runner := fx.NewRunner().HandleSignals()
	runner.StopOnError = true

	if conf.MQTT.URL != "" {
		q, err := bridge.NewDeviceQueue(conf.MQTT.URL, conf.MQTT.DeviceName)
		if err != nil {
			log.Fatalln(err)
		}
		if err := q.Connect(); err != nil {
			log.Fatalf("connect %s failed: %v", conf.MQTT.URL, err)
		}
		defer bridge.Retire(q, conf.MQTT.DeviceName)
		b, err := bridge.New(q, conf.MQTT.DeviceName, e.Transport.Registry)
		if err != nil {
			log.Fatalln(err)
		}
		e.AddSink(b.LogSink())
		runner.Go(fx.NamedRun("bridge", b))
	}
	if conf.Metrics.Addr != "" {
		runner.Go(fx.NamedRun("metrics", metricsServer(e)))
	}
	runner.Go(fx.NamedRun("transport", e.Transport))

	if err := runner.Wait(); err != nil {
		glog.Errorf("stopped: %v", err)
		e.Close()
		glog.Flush()
		os.Exit(1)
	}
}
