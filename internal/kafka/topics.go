package kafka

import (
	"log"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// CreateTopicIfNotExists provisions the scan-event topic at startup so the
// first published outcome does not race topic auto-creation.
func CreateTopicIfNotExists(brokers []string, topic string) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		if err.Error() == "kafka server: topic already exists" {
			log.Printf("Topic %s already exists", topic)
			return nil
		}
		return err
	}

	log.Printf("Created topic: %s", topic)
	return nil
}
