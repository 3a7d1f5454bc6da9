package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes headlines to the topic the web service consumes.
type Producer struct {
	writer MessageWriter
}

func NewProducer(broker string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	log.Printf("Kafka Producer initialized for broker %s, topic %s", broker, topic)
	return NewProducerWithWriter(writer)
}

func NewProducerWithWriter(w MessageWriter) *Producer {
	return &Producer{writer: w}
}

// ProduceArticle writes article as JSON, keyed by its URL so that repeats of
// one story land on the same partition.
func (p *Producer) ProduceArticle(ctx context.Context, article models.Article) error {
	articleJSON, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("failed to marshal article: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(article.URL),
		Value: articleJSON,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	log.Printf("Produced headline '%s' to Kafka", article.Title)
	return nil
}

func (p *Producer) Close() error {
	log.Println("Closing Kafka Producer...")
	return p.writer.Close()
}
