package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/nsqio/go-nsq"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// NSQ is a Queue backed by an nsqd instance. Delivery, redelivery and the
// attempt limit are handled by nsqd itself; the item-rate limit is applied
// on the consuming side.
type NSQ struct {
	options  Options
	address  string
	topic    string
	channel  string
	producer *nsq.Producer
	consumer *nsq.Consumer
	limiter  *rate.Limiter

	submitted atomic.Int64
	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func NewNSQ(address, topic, channel string, options Options) (*NSQ, error) {

	options.setDefaults()

	producer, err := nsq.NewProducer(address, nsq.NewConfig())
	if err != nil {
		return nil, err
	}

	burst := int(options.ItemsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &NSQ{
		options:  options,
		address:  address,
		topic:    topic,
		channel:  channel,
		producer: producer,
		limiter:  rate.NewLimiter(rate.Limit(options.ItemsPerSecond), burst),
	}, nil
}

func (q *NSQ) Submit(ctx context.Context, units []Unit) error {

	bodies := make([][]byte, 0, len(units))
	for _, unit := range units {
		body, err := json.Marshal(unit)
		if err != nil {
			return err
		}
		bodies = append(bodies, body)
	}

	if err := q.producer.MultiPublish(q.topic, bodies); err != nil {
		return err
	}

	q.submitted.Add(int64(len(units)))
	return nil
}

func (q *NSQ) Consume(handler Handler) error {
	if q.consumer != nil {
		return errors.New("consumer already registered")
	}

	cfg := nsq.NewConfig()
	cfg.MaxAttempts = uint16(q.options.MaxAttempts)
	cfg.MaxInFlight = q.options.Concurrency
	cfg.DefaultRequeueDelay = q.options.Backoff
	cfg.MaxRequeueDelay = backoffDelay(q.options.Backoff, q.options.MaxAttempts)

	consumer, err := nsq.NewConsumer(q.topic, q.channel, cfg)
	if err != nil {
		return err
	}

	consumer.AddConcurrentHandlers(nsq.HandlerFunc(func(m *nsq.Message) error {

		var unit Unit
		if err := json.Unmarshal(m.Body, &unit); err != nil {
			log.WithField("topic", q.topic).Errorf("dropping undecodable unit: %v", err)
			q.failed.Add(1)
			return nil
		}
		unit.Attempt = int(m.Attempts)

		q.active.Add(1)
		defer q.active.Add(-1)

		if err := q.waitForRate(unit.Items); err != nil {
			return err
		}

		if err := handler(context.Background(), unit); err != nil {
			if unit.Attempt >= q.options.MaxAttempts {
				q.failed.Add(1)
				return err // nsqd discards the message after this attempt
			}
			m.Requeue(backoffDelay(q.options.Backoff, unit.Attempt))
			return nil
		}

		q.completed.Add(1)
		return nil
	}), q.options.Concurrency)

	if err := consumer.ConnectToNSQD(q.address); err != nil {
		return err
	}

	q.consumer = consumer
	return nil
}

func (q *NSQ) waitForRate(n int) error {
	burst := q.limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := q.limiter.WaitN(context.Background(), chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Stats reports this process's view of the queue. Waiting is derived from
// local submissions, so it undercounts when another producer shares the
// topic.
func (q *NSQ) Stats() Stats {
	completed := q.completed.Load()
	failed := q.failed.Load()
	active := q.active.Load()

	waiting := q.submitted.Load() - completed - failed - active
	if waiting < 0 {
		waiting = 0
	}

	return Stats{
		Waiting:   waiting,
		Active:    active,
		Completed: completed,
		Failed:    failed,
	}
}

func (q *NSQ) Stop() {
	if q.consumer != nil {
		q.consumer.Stop()
		<-q.consumer.StopChan
	}
	q.producer.Stop()
}
