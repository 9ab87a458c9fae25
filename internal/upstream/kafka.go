package upstream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/rhcarvalho/relay/pkg/circuit"
)

// KafkaAuthConfig configures SASL authentication for the Kafka forwarder.
type KafkaAuthConfig struct {
	Enabled   bool
	Username  string
	Password  string
	Mechanism string // "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"
}

// KafkaForwarderConfig configures KafkaForwarder.
type KafkaForwarderConfig struct {
	Brokers     []string
	Topic       string
	Compression string // "gzip", "snappy", "lz4", "zstd", "" (none)
	Auth        KafkaAuthConfig
	TLSEnabled  bool
	Timeout     time.Duration
}

// KafkaForwarder publishes each normalized event as one JSON message on a
// Kafka topic, an alternative to the HTTP forwarder for deployments that
// already route telemetry through a broker.
type KafkaForwarder struct {
	topic    string
	producer sarama.SyncProducer
	breaker  *circuit.Breaker
	logger   *logrus.Logger
}

// NewKafkaForwarder builds a KafkaForwarder from cfg.
func NewKafkaForwarder(cfg KafkaForwarderConfig, logger *logrus.Logger) (*KafkaForwarder, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("upstream: kafka forwarder: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("upstream: kafka forwarder: no topic configured")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5

	switch strings.ToLower(cfg.Compression) {
	case "gzip":
		saramaConfig.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		saramaConfig.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		saramaConfig.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		saramaConfig.Producer.Compression = sarama.CompressionZSTD
	default:
		saramaConfig.Producer.Compression = sarama.CompressionNone
	}

	if cfg.Timeout > 0 {
		saramaConfig.Net.DialTimeout = cfg.Timeout
		saramaConfig.Net.ReadTimeout = cfg.Timeout
		saramaConfig.Net.WriteTimeout = cfg.Timeout
	}

	if cfg.Auth.Enabled {
		saramaConfig.Net.SASL.Enable = true
		saramaConfig.Net.SASL.User = cfg.Auth.Username
		saramaConfig.Net.SASL.Password = cfg.Auth.Password

		switch strings.ToUpper(cfg.Auth.Mechanism) {
		case "PLAIN":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		case "SCRAM-SHA-256":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &xdgSCRAMClient{HashGeneratorFcn: scramSHA256}
			}
		case "SCRAM-SHA-512":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &xdgSCRAMClient{HashGeneratorFcn: scramSHA512}
			}
		}
	}

	if cfg.TLSEnabled {
		saramaConfig.Net.TLS.Enable = true
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("upstream: kafka forwarder: create producer: %w", err)
	}

	breaker := circuit.NewBreaker(circuit.BreakerConfig{
		Name:             "upstream-kafka",
		FailureThreshold: 10,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
	}, logger)

	logger.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Info("kafka upstream forwarder initialized")

	return &KafkaForwarder{topic: cfg.Topic, producer: producer, breaker: breaker, logger: logger}, nil
}

// Send implements Forwarder. projectID becomes the message key, so a
// consumer that wants per-project partitioning gets it for free from the
// configured partitioner.
func (f *KafkaForwarder) Send(ctx context.Context, projectID string, payload []byte) error {
	return f.breaker.Execute(func() error {
		_, _, err := f.producer.SendMessage(&sarama.ProducerMessage{
			Topic: f.topic,
			Key:   sarama.StringEncoder(projectID),
			Value: sarama.ByteEncoder(payload),
		})
		return err
	})
}

// Close flushes and closes the underlying producer.
func (f *KafkaForwarder) Close() error {
	return f.producer.Close()
}
