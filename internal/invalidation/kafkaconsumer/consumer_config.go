package kafkaconsumer

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type Config struct {
	Enabled             bool
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	RetryBackoff        time.Duration
	// DedupeSize bounds the number of scenes remembered for replay filtering.
	DedupeSize int
	SASLUser   string
	SASLPass   string
	LogLevel   string
}

func FromEnv() Config {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "scene-ingest"
	}
	group := os.Getenv("KAFKA_GROUP_ID")
	if group == "" {
		group = "band-algebra-invalidator"
	}
	dedupe, err := strconv.Atoi(os.Getenv("INVALIDATION_DEDUPE_SIZE"))
	if err != nil || dedupe <= 0 {
		dedupe = 4096
	}

	return Config{
		Enabled:             strings.EqualFold(os.Getenv("INVALIDATION_ENABLED"), "true"),
		Brokers:             splitCSV(brokers),
		Topic:               topic,
		GroupID:             group,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: true,
		RetryBackoff:        2 * time.Second,
		DedupeSize:          dedupe,
		SASLUser:            os.Getenv("KAFKA_SASL_USER"),
		SASLPass:            os.Getenv("KAFKA_SASL_PASSWORD"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
	}
}

func (c Config) sarama() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = "band-algebra"
	cfg.Consumer.Group.Session.Timeout = c.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.RebalanceTimeout
	if c.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	if c.SASLUser != "" {
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		cfg.Net.SASL.User = c.SASLUser
		cfg.Net.SASL.Password = c.SASLPass
	}
	return cfg
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
