package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/shortontech/edgeprobe/internal/report"
)

// KafkaConfig holds configuration for the Kafka producer
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	Acks        string
	Compression string

	SASLMechanism string
	SASLUser      string
	SASLPassword  string

	TLSCAPath     string
	TLSSkipVerify bool
}

// KafkaSink produces reports keyed by report ID so consumers can dedupe
type KafkaSink struct {
	config   KafkaConfig
	producer *kafka.Producer
}

func NewKafkaSinkFromEnv() *KafkaSink {
	var brokers []string
	for _, b := range strings.Split(getEnvOr("KAFKA_BROKERS", "localhost:9092"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return &KafkaSink{config: KafkaConfig{
		Brokers:       brokers,
		Topic:         getEnvOr("KAFKA_TOPIC", "edgeprobe.reports"),
		Acks:          getEnvOr("KAFKA_ACKS", "all"),
		Compression:   os.Getenv("KAFKA_COMPRESSION"),
		SASLMechanism: os.Getenv("KAFKA_SASL_MECHANISM"),
		SASLUser:      os.Getenv("KAFKA_SASL_USER"),
		SASLPassword:  os.Getenv("KAFKA_SASL_PASSWORD"),
		TLSCAPath:     os.Getenv("KAFKA_TLS_CA"),
		TLSSkipVerify: getBoolEnv("KAFKA_TLS_SKIP_VERIFY", false),
	}}
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{config: KafkaConfig{Brokers: brokers, Topic: topic, Acks: "all"}}
}

func (s *KafkaSink) Name() string { return "kafka" }

// configMap translates KafkaConfig into librdkafka settings
func (s *KafkaSink) configMap() kafka.ConfigMap {
	cm := kafka.ConfigMap{
		"bootstrap.servers": strings.Join(s.config.Brokers, ","),
		"acks":              s.config.Acks,
		"retries":           10,
		"retry.backoff.ms":  100,
		"linger.ms":         10,
	}
	if s.config.Compression != "" {
		cm["compression.type"] = s.config.Compression
	}
	if s.config.SASLMechanism != "" {
		cm["security.protocol"] = "SASL_SSL"
		cm["sasl.mechanism"] = s.config.SASLMechanism
		if s.config.SASLUser != "" {
			cm["sasl.username"] = s.config.SASLUser
		}
		if s.config.SASLPassword != "" {
			cm["sasl.password"] = s.config.SASLPassword
		}
	}
	if s.config.TLSCAPath != "" {
		if s.config.SASLMechanism == "" {
			cm["security.protocol"] = "SSL"
		}
		cm["ssl.ca.location"] = s.config.TLSCAPath
	}
	if s.config.TLSSkipVerify {
		cm["ssl.endpoint.identification.algorithm"] = "none"
	}
	return cm
}

func (s *KafkaSink) Start(ctx context.Context) error {
	cm := s.configMap()
	producer, err := kafka.NewProducer(&cm)
	if err != nil {
		return fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	s.producer = producer

	go s.handleDeliveryReports(ctx)
	return nil
}

func (s *KafkaSink) Enqueue(r report.Report) error {
	if s.producer == nil {
		return fmt.Errorf("kafka producer not initialized")
	}

	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.config.Topic, Partition: kafka.PartitionAny},
		Key:            []byte(r.ID),
		Value:          value,
		Headers: []kafka.Header{
			{Key: "provider", Value: []byte(r.Result.Provider)},
			{Key: "schema", Value: []byte("v1")},
		},
	}
	if err := s.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if s.producer == nil {
		return nil
	}
	defer s.producer.Close()

	if remaining := s.producer.Flush(10 * 1000); remaining > 0 {
		return fmt.Errorf("failed to flush %d remaining messages", remaining)
	}
	return nil
}

func (s *KafkaSink) handleDeliveryReports(ctx context.Context) {
	events := s.producer.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch e := ev.(type) {
			case *kafka.Message:
				if e.TopicPartition.Error != nil {
					log.Printf("kafka: delivery failed for %s: %v", e.Key, e.TopicPartition.Error)
				}
			case kafka.Error:
				log.Printf("kafka: %v", e)
			}
		}
	}
}
