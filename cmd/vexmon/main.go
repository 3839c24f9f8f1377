package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/vexlink/pkg/bridge"
	pb "github.com/robotalks/vexlink/pkg/proto/vexlink/v1"
)

//go-build: CGO_ENABLED=0

var (
	mqttURL = "mqtt://localhost:1883/vexlink/"
)

func init() {
	if val := os.Getenv("VEXLINK_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func decode(topic string, payload []byte) (string, error) {
	var msg proto.Message
	switch {
	case strings.HasSuffix(topic, "/"+bridge.TopicRequest):
		msg = &pb.Request{}
	case strings.HasSuffix(topic, "/"+bridge.TopicResponse):
		msg = &pb.Response{}
	case strings.HasSuffix(topic, "/"+bridge.TopicMotorReport):
		msg = &pb.MotorReport{}
	case strings.HasSuffix(topic, "/"+bridge.TopicMotorQuery):
		msg = &pb.MotorQuery{}
	default:
		return string(payload), nil
	}
	if err := proto.Unmarshal(payload, msg); err != nil {
		return "", err
	}
	return proto.CompactTextString(msg), nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := bridge.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err := q.Connect(); err != nil {
		log.Fatalln(err)
	}
	defer q.Close()

	_, err = q.Subscribe("#", func(topic string, payload []byte) {
		text, err := decode(topic, payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, text)
	})
	if err != nil {
		log.Fatalln(err)
	}
	<-(chan struct{})(nil)
}
