// Package kafka forwards terminal session events to a topic read by the
// customer-tab and reporting collaborators.
package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/yeremiapane/billiard-hall/hub"
	"github.com/yeremiapane/billiard-hall/models"
	"github.com/yeremiapane/billiard-hall/utils"
)

const queueSize = 256

// SessionRecord is the message value written for every finalized or
// cancelled session.
type SessionRecord struct {
	Type       string         `json:"type"`
	SessionID  uint           `json:"session_id"`
	TableID    uint           `json:"table_id"`
	CustomerID *uint          `json:"customer_id,omitempty"`
	Session    models.Session `json:"session"`
	EmittedAt  time.Time      `json:"emitted_at"`
}

// Producer implements hub.Publisher. Publish only enqueues; a single worker
// does the synchronous send so command handlers never wait on the broker.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	mockMode bool

	queue  chan *sarama.ProducerMessage
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

// NewProducer connects to brokers. With no brokers the producer runs in mock
// mode and only logs what it would have sent.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		utils.InfoLogger.Infof("kafka: no brokers configured, session feed runs in mock mode")
		return newProducer(nil, topic), nil
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	utils.InfoLogger.Infof("kafka: connected to brokers %v, topic %s", brokers, topic)
	return newProducer(producer, topic), nil
}

func newProducer(sp sarama.SyncProducer, topic string) *Producer {
	p := &Producer{
		producer: sp,
		topic:    topic,
		mockMode: sp == nil,
		queue:    make(chan *sarama.ProducerMessage, queueSize),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Producer) Publish(events ...hub.Event) {
	for _, ev := range events {
		if ev.Event != hub.EventSessionFinalized && ev.Event != hub.EventSessionCancelled {
			continue
		}
		payload, ok := ev.Data.(hub.SessionPayload)
		if !ok {
			continue
		}

		record := SessionRecord{
			Type:       ev.Event,
			SessionID:  payload.Session.ID,
			TableID:    payload.Session.TableID,
			CustomerID: payload.Session.CustomerID,
			Session:    payload.Session,
			EmittedAt:  time.Now().UTC(),
		}
		data, err := json.Marshal(record)
		if err != nil {
			utils.ErrorLogger.Errorf("kafka: marshal session %d: %v", record.SessionID, err)
			continue
		}

		msg := &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(strconv.FormatUint(uint64(record.SessionID), 10)),
			Value: sarama.ByteEncoder(data),
		}
		p.enqueue(msg, ev.Event, record.SessionID)
	}
}

// enqueue never blocks. Messages arriving after Close are dropped.
func (p *Producer) enqueue(msg *sarama.ProducerMessage, event string, sessionID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		utils.ErrorLogger.Warnf("kafka: producer closed, dropped %s for session %d", event, sessionID)
		return
	}
	select {
	case p.queue <- msg:
	default:
		utils.ErrorLogger.Warnf("kafka: queue full, dropped %s for session %d", event, sessionID)
	}
}

func (p *Producer) run() {
	defer p.wg.Done()
	for msg := range p.queue {
		if p.mockMode {
			utils.InfoLogger.Debugf("kafka: mock publish to %s key=%s", msg.Topic, msg.Key)
			continue
		}
		partition, offset, err := p.producer.SendMessage(msg)
		if err != nil {
			utils.ErrorLogger.Errorf("kafka: send to %s: %v", msg.Topic, err)
			continue
		}
		utils.InfoLogger.Debugf("kafka: sent to %s partition %d offset %d", msg.Topic, partition, offset)
	}
}

// Close drains queued messages and closes the underlying producer.
func (p *Producer) Close() error {
	var err error
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		p.wg.Wait()
		if p.producer != nil {
			err = p.producer.Close()
		}
	})
	return err
}
