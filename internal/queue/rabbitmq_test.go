package queue

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/benvon/smart-docs/internal/models"
)

func TestTopology(t *testing.T) {
	names := newTopology("staging_docs")
	want := topology{
		jobs:     "staging_docs_jobs",
		dlq:      "staging_docs_jobs_dlq",
		exchange: "staging_docs_exchange",
		delayed:  "staging_docs_delayed",
	}
	if diff := cmp.Diff(want, names, cmp.AllowUnexported(topology{})); diff != "" {
		t.Errorf("newTopology() mismatch (-want +got):\n%s", diff)
	}

	if got := names.bindings(false); len(got) != 2 {
		t.Errorf("bindings(false) = %d routes, want 2", len(got))
	}
	withDelay := names.bindings(true)
	last := withDelay[len(withDelay)-1]
	if last.exchange != names.delayed || last.queue != names.jobs || last.key != jobsRoutingKey {
		t.Errorf("delayed binding = %+v", last)
	}
}

func TestWithQueuePrefix(t *testing.T) {
	q := &RabbitMQQueue{names: newTopology(DefaultQueuePrefix)}
	WithQueuePrefix("")(q)
	if q.names.jobs != "document_generation_jobs" {
		t.Errorf("empty prefix changed names to %q", q.names.jobs)
	}
	WithQueuePrefix("docs")(q)
	if q.names.jobs != "docs_jobs" {
		t.Errorf("jobs queue = %q, want docs_jobs", q.names.jobs)
	}
}

func TestRabbitMQQueue_Publishing(t *testing.T) {
	job := NewGenerateContentJob("plan.json", "Plan", models.DocumentKindTodoList, "weekly chores")

	q := &RabbitMQQueue{names: newTopology(DefaultQueuePrefix)}
	pub, exchange, err := q.publishing(job)
	if err != nil {
		t.Fatalf("publishing() error = %v", err)
	}
	if exchange != q.names.exchange {
		t.Errorf("exchange = %q, want %q", exchange, q.names.exchange)
	}
	if pub.DeliveryMode != amqp.Persistent || pub.MessageId != job.ID.String() || pub.Type != string(JobTypeGenerateContent) {
		t.Errorf("unexpected publishing metadata: %+v", pub)
	}
	if pub.Expiration != "" || pub.Headers != nil {
		t.Errorf("immediate job should carry no expiration or delay: %q %v", pub.Expiration, pub.Headers)
	}

	var decoded Job
	if err := json.Unmarshal(pub.Body, &decoded); err != nil {
		t.Fatalf("body is not a job: %v", err)
	}
	if decoded.Filename != "plan.json" || decoded.Kind != models.DocumentKindTodoList {
		t.Errorf("decoded job = %+v", decoded)
	}
}

func TestRabbitMQQueue_PublishingDelayAndExpiry(t *testing.T) {
	job := NewGenerateContentJob("habits.json", "Habits", models.DocumentKindHabit, "")
	notBefore := time.Now().Add(time.Minute)
	notAfter := time.Now().Add(time.Hour)
	job.NotBefore = &notBefore
	job.NotAfter = &notAfter

	// without the plugin the delay is dropped and the consumer reschedules
	plain := &RabbitMQQueue{names: newTopology(DefaultQueuePrefix)}
	pub, exchange, err := plain.publishing(job)
	if err != nil {
		t.Fatalf("publishing() error = %v", err)
	}
	if exchange != plain.names.exchange || pub.Headers != nil {
		t.Errorf("no delayed exchange: exchange = %q headers = %v", exchange, pub.Headers)
	}
	ttl, err := strconv.ParseInt(pub.Expiration, 10, 64)
	if err != nil || ttl <= 0 || ttl > time.Hour.Milliseconds() {
		t.Errorf("expiration = %q", pub.Expiration)
	}

	delayed := &RabbitMQQueue{names: newTopology(DefaultQueuePrefix), hasDelayedExchange: true}
	pub, exchange, err = delayed.publishing(job)
	if err != nil {
		t.Fatalf("publishing() error = %v", err)
	}
	if exchange != delayed.names.delayed {
		t.Errorf("exchange = %q, want delayed", exchange)
	}
	delay, ok := pub.Headers["x-delay"].(int64)
	if !ok || delay <= 0 || delay > time.Minute.Milliseconds() {
		t.Errorf("x-delay = %v", pub.Headers["x-delay"])
	}
}

func TestRabbitMQQueue_PublishingRejectsInvalidJob(t *testing.T) {
	q := &RabbitMQQueue{names: newTopology(DefaultQueuePrefix)}
	if _, _, err := q.publishing(&Job{Type: JobTypeGenerateContent}); !errors.Is(err, ErrInvalidJob) {
		t.Errorf("publishing(invalid) = %v, want ErrInvalidJob", err)
	}
}
