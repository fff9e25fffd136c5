package databus

import (
	"strings"

	"gopkg.in/Shopify/sarama.v1"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
)

type Event interface {
	Serialize() []byte
	Topic() string
	// Key orders events of one entity on a partition; empty means no key.
	Key() string
}

type DataBus struct {
	producer sarama.SyncProducer
}

// InitDataBus connects a sync producer to the comma separated brokers.
func InitDataBus(host string) (*DataBus, error) {
	hosts := strings.Split(host, ",")
	conf := sarama.NewConfig()
	conf.Producer.Return.Successes = true
	conf.Producer.RequiredAcks = sarama.WaitForAll
	p, err := sarama.NewSyncProducer(hosts, conf)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	log.Info("Kafka producer initialized...")
	return NewDataBus(p), nil
}

func NewDataBus(p sarama.SyncProducer) *DataBus {
	return &DataBus{producer: p}
}

func (db *DataBus) PublishRaw(topic, key string, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(raw),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	partition, offset, err := db.producer.SendMessage(msg)
	if err != nil {
		return errors.WrapAndReport(err, "produce message")
	}
	log.Debugf("produce message to %s partition: %d, offset: %d", topic, partition, offset)
	return nil
}

func (db *DataBus) Publish(e Event) error {
	return db.PublishRaw(e.Topic(), e.Key(), e.Serialize())
}

func (db *DataBus) Close() error {
	return db.producer.Close()
}
