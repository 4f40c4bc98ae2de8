// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// mq is a handle onto the MQTT broker connection rtcored uses to publish
// telemetry and receive commands: a plain Publish/Subscribe shape, no
// reflection-based generic subscription routing, since every topic here
// has one fixed Go type on each end.
type mq struct {
	conn mqtt.Client
	log  *logrus.Logger
}

// newMQ connects to the broker described by conf.
func newMQ(conf MQTTConfig, log *logrus.Logger) (*mq, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", conf.Host, conf.Port))
	opts.ClientID = "rtcored"
	opts.Username = conf.User
	opts.Password = conf.Password

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	log.Info("mqtt connected")
	return &mq{conn: client, log: log}, nil
}

// Publish JSON-encodes payload and publishes it to topic at QoS 1.
func (m *mq) Publish(topic string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		m.log.WithError(err).WithField("topic", topic).Error("marshal MQTT payload")
		return
	}
	m.conn.Publish(topic, 1, false, body)
}

// Subscribe invokes handler with the raw payload of every message received
// on topic.
func (m *mq) Subscribe(topic string, handler func(payload []byte)) error {
	cb := func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	}
	if token := m.conn.Subscribe(topic, 1, cb); !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (m *mq) Close() {
	m.conn.Disconnect(250)
}
