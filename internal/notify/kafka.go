package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"

	"signal_bot/internal/models"
)

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"signal_bot.proposals"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka публикует каждое предложение отдельным сообщением с ключом = инструмент,
// чтобы все сигналы по инструменту шли в одну партицию.
type Kafka struct {
	w messageWriter
}

// ProposalEvent: то, что уходит в топик.
type ProposalEvent struct {
	CycleStartedAt time.Time `json:"cycle_started_at"`
	models.Proposal
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: brokers are required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Kafka{w: w}, nil
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Notify(ctx context.Context, report models.CycleReport) error {
	msgs, err := proposalMessages(report)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	return k.w.WriteMessages(ctx, msgs...)
}

func (k *Kafka) Close() error {
	return k.w.Close()
}

func proposalMessages(report models.CycleReport) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, report.Total())
	for _, m := range report.Markets {
		for _, p := range report.Proposals[m] {
			v, err := sonic.Marshal(ProposalEvent{CycleStartedAt: report.StartedAt, Proposal: p})
			if err != nil {
				return nil, fmt.Errorf("marshal proposal %s: %w", p.ID, err)
			}
			msgs = append(msgs, kafka.Message{
				Key:   []byte(p.Instrument),
				Value: v,
				Time:  p.CreatedAt,
			})
		}
	}
	return msgs, nil
}
