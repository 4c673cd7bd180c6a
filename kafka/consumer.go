// Package kafka is the optional scan-request intake. When brokers are
// configured, JSON submissions on a topic queue scan tasks exactly like the
// HTTP endpoint does.
package kafka

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/IBM/sarama"

	"scout/scan"
	"scout/types"
)

// MessageHandler decides what happens to each consumed message. Returning
// shouldMark=false (or an error) leaves the offset unmarked so the broker
// redelivers the message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

// Consumer drains one topic through a consumer group and feeds every message
// to the configured handler.
type Consumer struct {
	consumer sarama.ConsumerGroup
	handler  MessageHandler
	topic    string
	groupID  string
	ready    chan struct{}
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(config ConsumerConfig) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	client, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		consumer: client,
		handler:  config.Handler,
		topic:    config.Topic,
		groupID:  config.GroupID,
		ready:    make(chan struct{}),
	}, nil
}

// Start begins consuming messages from Kafka. It returns once the group has
// joined; consumption continues in the background until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	handler := &consumerGroupHandler{
		messageHandler: c.handler,
		ready:          c.ready,
	}

	go func() {
		// Consume returns on every rebalance and must be called again.
		for {
			if err := c.consumer.Consume(ctx, []string{c.topic}, handler); err != nil {
				if err == context.Canceled {
					log.Println("Kafka consumer context canceled")
					return
				}
				log.Printf("Error from Kafka consumer: %v", err)
			}

			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-c.ready
	log.Printf("Kafka consumer started (group: %s, topic: %s)", c.groupID, c.topic)

	go func() {
		for err := range c.consumer.Errors() {
			log.Printf("Warning: Kafka consumer error: %v", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the consumer.
func (c *Consumer) Close() error {
	log.Println("Closing Kafka consumer...")
	return c.consumer.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	messageHandler MessageHandler
	ready          chan struct{}
	readyOnce      sync.Once
}

// Setup runs at the start of every session; only the first one signals
// readiness.
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.readyOnce.Do(func() { close(h.ready) })
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			log.Printf("Received Kafka message: partition=%d, offset=%d, key=%s",
				message.Partition, message.Offset, string(message.Key))

			shouldMark, err := h.messageHandler.HandleMessage(session.Context(), message.Value)
			if err != nil {
				log.Printf("Warning: failed to handle message: %v", err)
			}
			if shouldMark {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// ScanSubmission is the JSON payload accepted on the intake topic.
type ScanSubmission struct {
	Documents            []types.DocumentRef `json:"documents"`
	KeepPartialResults   bool                `json:"keep_partial_results"`
	ExcludeLowConfidence bool                `json:"exclude_low_confidence"`
}

// SubmissionHandler turns intake messages into scan tasks. Malformed and
// invalid messages are marked and skipped; queue-full submissions are left
// unmarked so the broker redelivers them.
type SubmissionHandler struct {
	Manager *scan.Manager
}

func (h *SubmissionHandler) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var sub ScanSubmission
	if err := json.Unmarshal(message, &sub); err != nil {
		log.Printf("Warning: skipping malformed scan submission: %v", err)
		return true, nil
	}
	if len(sub.Documents) == 0 {
		log.Printf("Warning: skipping scan submission without documents")
		return true, nil
	}
	for _, d := range sub.Documents {
		if d.ID == "" || d.Path == "" {
			log.Printf("Warning: skipping scan submission with incomplete document refs")
			return true, nil
		}
	}

	id, err := h.Manager.Submit(sub.Documents, scan.Options{
		KeepPartialResults:   sub.KeepPartialResults,
		ExcludeLowConfidence: sub.ExcludeLowConfidence,
	})
	if err != nil {
		return false, err
	}
	log.Printf("Queued scan task %s from Kafka (%d documents)", id, len(sub.Documents))
	return true, nil
}
