package bridge

import (
	"encoding/json"

	"github.com/golang/glog"
)

// TopicMeta holds the retained device description, cleared when the
// bridge goes away.
const TopicMeta = "meta"

// Meta describes the device served by a bridge.
type Meta struct {
	Device string   `json:"device"`
	Topics []string `json:"topics"`
}

// MetaOf describes device.
func MetaOf(device string) Meta {
	m := Meta{Device: device}
	for _, name := range []string{TopicRequest, TopicResponse, TopicMotorQuery, TopicMotorReport, TopicLog} {
		m.Topics = append(m.Topics, device+"/"+name)
	}
	return m
}

// NewDeviceQueue creates a Queue which announces device on connect. The
// announcement is cleared by the broker if the connection is lost.
func NewDeviceQueue(brokerURL, device string) (*Queue, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	metaTopic := device + "/" + TopicMeta
	opts.SetBinaryWill(topicPrefix+metaTopic, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("vexlink:" + device)
	}
	meta, err := json.Marshal(MetaOf(device))
	if err != nil {
		return nil, err
	}
	q := NewQueue(opts, topicPrefix)
	q.OnConnect = func(q *Queue) {
		// called from the client's callback, don't wait for the token.
		go func() {
			if err := q.PublishRetained(metaTopic, meta); err != nil {
				glog.Warningf("publish meta error: %v", err)
			}
		}()
	}
	return q, nil
}

// Retire clears the device announcement and closes the queue.
func Retire(q *Queue, device string) error {
	err := q.PublishRetained(device+"/"+TopicMeta, nil)
	q.Close()
	return err
}
