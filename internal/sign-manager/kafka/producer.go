package kafka

import (
	"log"
	"os"
	"strings"

	"github.com/segmentio/kafka-go"
)

const DefaultDisplayEventsTopic = "display_events"

// NewDisplayEventProducer builds the writer for the display audit topic.
// Returns nil when KAFKA_BROKERS is unset: a sign controller usually runs
// without a broker, and the executor treats a nil producer as disabled.
func NewDisplayEventProducer() *kafka.Writer {
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		log.Println("KAFKA_BROKERS not set, display events disabled.")
		return nil
	}
	topic := os.Getenv("DISPLAY_EVENTS_TOPIC")
	if topic == "" {
		topic = DefaultDisplayEventsTopic
	}
	producer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      strings.Split(kafkaBrokers, ","),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: int(kafka.RequireOne),
		Async:        false,
	})
	log.Printf("Display event Kafka producer configured for topic: %s", topic)
	return producer
}
