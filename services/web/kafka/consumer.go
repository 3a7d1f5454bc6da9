package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/events"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/storage"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer moves headlines from the warmer's topic into the headline store
// and announces each new one on the bus.
type Consumer struct {
	reader  MessageReader
	storage *storage.HeadlineStore
	bus     *events.Bus
}

func NewConsumer(broker, topic, groupID string, s *storage.HeadlineStore, bus *events.Bus) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{broker},
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
		MaxWait:  1 * time.Second,
	})
	log.Printf("Kafka Consumer initialized for broker %s, topic %s, group %s", broker, topic, groupID)
	return NewConsumerWithReader(reader, s, bus)
}

func NewConsumerWithReader(r MessageReader, s *storage.HeadlineStore, bus *events.Bus) *Consumer {
	return &Consumer{reader: r, storage: s, bus: bus}
}

// StartConsuming reads until ctx is cancelled. Run it in its own goroutine.
func (c *Consumer) StartConsuming(ctx context.Context) {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Println("Kafka Consumer shutting down...")
				return
			}
			log.Printf("Error fetching message from Kafka: %v", err)
			select {
			case <-ctx.Done():
				log.Println("Kafka Consumer shutting down...")
				return
			case <-time.After(time.Second):
			}
			continue
		}

		c.handle(m)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			log.Printf("Error committing offset: %v", err)
		}
	}
}

// handle stores one message. Malformed messages are logged and still committed
// so they are not redelivered.
func (c *Consumer) handle(m kafka.Message) {
	var article models.Article
	if err := json.Unmarshal(m.Value, &article); err != nil {
		log.Printf("Error unmarshaling article: %v, message: %s", err, string(m.Value))
		return
	}
	if article.URL == "" {
		log.Printf("Skipping headline without URL: %q", article.Title)
		return
	}

	if !c.storage.Add(article) {
		return
	}
	log.Printf("Consumed headline '%s' from Kafka. Total headlines: %d", article.Title, c.storage.Count())
	if c.bus != nil {
		c.bus.Publish(events.Event{Kind: events.Headline, Article: &article})
	}
}

func (c *Consumer) Close() error {
	log.Println("Closing Kafka Consumer...")
	return c.reader.Close()
}
