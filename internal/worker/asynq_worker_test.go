package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/threadline/storefront/internal/config"
	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/provider"
	"github.com/threadline/storefront/internal/queue"
	"github.com/threadline/storefront/internal/service"

	"github.com/hibiken/asynq"
)

type fakeSweeper struct {
	inputs []service.SweepInput
	err    error
}

func (f *fakeSweeper) SweepAbandoned(input service.SweepInput) (*service.SweepResult, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &service.SweepResult{AbandonedMinutes: input.AbandonedMinutes}, nil
}

func (f *fakeSweeper) DefaultAbandonedMinutes() int { return 45 }

type fakeEnqueuer struct {
	enabled  bool
	err      error
	payloads []queue.AbandonedOrderSweepPayload
}

func (f *fakeEnqueuer) Enabled() bool { return f.enabled }

func (f *fakeEnqueuer) EnqueueAbandonedOrderSweep(payload queue.AbandonedOrderSweepPayload) (bool, error) {
	f.payloads = append(f.payloads, payload)
	return f.err == nil, f.err
}

func TestSchedulerEnqueuesWhenQueueEnabled(t *testing.T) {
	sweeper := &fakeSweeper{}
	enqueuer := &fakeEnqueuer{enabled: true}
	s, err := NewScheduler("", sweeper, enqueuer)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	if s.schedule != defaultSweepSchedule {
		t.Fatalf("expected default schedule, got %q", s.schedule)
	}

	s.triggerSweep()
	if len(enqueuer.payloads) != 1 || len(sweeper.inputs) != 0 {
		t.Fatalf("expected enqueue only, got payloads=%d inline=%d", len(enqueuer.payloads), len(sweeper.inputs))
	}
	if enqueuer.payloads[0].AbandonedMinutes != 45 || enqueuer.payloads[0].Trigger != constants.SweepTriggerCron {
		t.Fatalf("unexpected payload: %+v", enqueuer.payloads[0])
	}
}

func TestSchedulerRunsInlineWithoutQueue(t *testing.T) {
	cases := []struct {
		name     string
		enqueuer *fakeEnqueuer
	}{
		{"queue_disabled", &fakeEnqueuer{}},
		{"enqueue_failed", &fakeEnqueuer{enabled: true, err: errors.New("redis down")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sweeper := &fakeSweeper{}
			s, err := NewScheduler("@every 1m", sweeper, tc.enqueuer)
			if err != nil {
				t.Fatalf("new scheduler failed: %v", err)
			}
			s.triggerSweep()
			if len(sweeper.inputs) != 1 {
				t.Fatalf("expected inline sweep, got %d", len(sweeper.inputs))
			}
			if sweeper.inputs[0].RequestID == "" || sweeper.inputs[0].DryRun {
				t.Fatalf("unexpected inline input: %+v", sweeper.inputs[0])
			}
		})
	}
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	if _, err := NewScheduler("every minute", &fakeSweeper{}, nil); err == nil {
		t.Fatalf("expected schedule parse error")
	}
	if _, err := NewScheduler("", nil, nil); err == nil {
		t.Fatalf("expected nil sweeper error")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := NewScheduler("@every 1h", &fakeSweeper{}, nil)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("start returned error: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestSkipEmailError(t *testing.T) {
	if !skipEmailError(fmt.Errorf("send: %w", service.ErrEmailServiceDisabled)) {
		t.Fatalf("disabled email should be skipped")
	}
	if !skipEmailError(service.ErrEmailRecipientEmpty) {
		t.Fatalf("empty recipient should be skipped")
	}
	if skipEmailError(errors.New("smtp 451")) {
		t.Fatalf("transient smtp errors should be retried")
	}
}

func TestConsumerSkipsInvalidPayloads(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})
	if err := consumer.handlePaymentConfirmationEmail(context.Background(), asynq.NewTask(queue.TaskPaymentConfirmationEmail, []byte(`{"order_id":0}`))); err != nil {
		t.Fatalf("zero order id should be skipped, got %v", err)
	}
	if err := consumer.handleOrderStatusEmail(context.Background(), asynq.NewTask(queue.TaskOrderStatusEmail, []byte(`not-json`))); err == nil {
		t.Fatalf("malformed payload should fail")
	}
	if err := consumer.handleAbandonedOrderSweep(context.Background(), asynq.NewTask(queue.TaskAbandonedOrderSweep, []byte(`{}`))); err != nil {
		t.Fatalf("missing payment service should be skipped, got %v", err)
	}
}

func TestNewServiceRequiresEnabledQueue(t *testing.T) {
	if _, err := NewService(&config.QueueConfig{Enabled: false}, &Consumer{}); err == nil {
		t.Fatalf("disabled queue should be rejected")
	}
	if _, err := NewService(&config.QueueConfig{Enabled: true}, nil); err == nil {
		t.Fatalf("nil consumer should be rejected")
	}
	svc, err := NewService(&config.QueueConfig{Enabled: true, Host: "127.0.0.1", Port: 6390}, &Consumer{})
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	if svc.Name() != "worker" {
		t.Fatalf("unexpected name %q", svc.Name())
	}
}
