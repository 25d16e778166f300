package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/gee-wms/internal/invalidation"
)

type fakeRegistry struct {
	mu      sync.Mutex
	targets []string
	servers []string
}

func (f *fakeRegistry) Invalidate(_ context.Context, serverURL, targetPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers = append(f.servers, serverURL)
	f.targets = append(f.targets, targetPath)
}

func (f *fakeRegistry) InvalidateTarget(_ context.Context, targetPath string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, targetPath)
	return 2
}

type sess struct {
	ctx    context.Context
	claims map[string][]int32
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return s.claims }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "gee-publish-events" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventBytes(target, server string) []byte {
	ev := invalidation.Event{Version: 1, Op: invalidation.OpRepublish, Target: target, Server: server, TS: time.Now().UTC()}
	b, _ := json.Marshal(ev)
	return b
}

func newConsumerForTest(reg Invalidator) *Consumer {
	cfg := NewConfig("x", "gee-publish-events", "g")
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, reg)
}

func TestSinglePartition_OrderAndCommitAfterWork(t *testing.T) {
	reg := &fakeRegistry{}
	c := newConsumerForTest(reg)

	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- &sarama.ConsumerMessage{Topic: "gee-publish-events", Partition: 0, Offset: 10, Value: eventBytes("/merc", "")}
	ch <- &sarama.ConsumerMessage{Topic: "gee-publish-events", Partition: 0, Offset: 11, Value: eventBytes("/flat", "http://earth")}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
	if len(reg.targets) != 2 || reg.targets[0] != "/merc" || reg.targets[1] != "/flat" {
		t.Fatalf("targets=%v", reg.targets)
	}
	if len(reg.servers) != 1 || reg.servers[0] != "http://earth" {
		t.Fatalf("servers=%v", reg.servers)
	}
}

func TestPoisonMessageIsSkipped(t *testing.T) {
	reg := &fakeRegistry{}
	c := newConsumerForTest(reg)

	bad := &sarama.ConsumerMessage{Topic: "t", Offset: 3, Value: []byte(`{"version":1,"op":"nope"}`)}
	if err := c.ProcessOne(context.Background(), bad); !errors.Is(err, ErrPoison) {
		t.Fatalf("err=%v want ErrPoison", err)
	}

	s := &sess{ctx: t.Context()}
	g := &groupHandler{process: c.ProcessOne}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- bad
	ch <- &sarama.ConsumerMessage{Topic: "t", Offset: 4, Value: eventBytes("/merc", "")}
	close(ch)
	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 {
		t.Fatalf("marked=%v want both offsets", s.marked)
	}
	if len(reg.targets) != 1 {
		t.Fatalf("poison message reached the registry: %v", reg.targets)
	}
}

func TestTransientFailureIsNotMarked(t *testing.T) {
	s := &sess{ctx: t.Context()}
	g := &groupHandler{process: func(context.Context, *sarama.ConsumerMessage) error {
		return context.DeadlineExceeded
	}}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- &sarama.ConsumerMessage{Topic: "t", Offset: 5}
	close(ch)
	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err == nil {
		t.Fatalf("expected error")
	}
	if len(s.marked) != 0 {
		t.Fatalf("offset marked despite failure: %v", s.marked)
	}
}

func TestMultiPartition_Parallel(t *testing.T) {
	reg := &fakeRegistry{}
	c := newConsumerForTest(reg)
	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}

	p0 := make(chan *sarama.ConsumerMessage, 2)
	p1 := make(chan *sarama.ConsumerMessage, 2)
	p0 <- &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 1, Value: eventBytes("/a", "")}
	p0 <- &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 2, Value: eventBytes("/b", "")}
	p1 <- &sarama.ConsumerMessage{Topic: "t", Partition: 1, Offset: 1, Value: eventBytes("/c", "")}
	p1 <- &sarama.ConsumerMessage{Topic: "t", Partition: 1, Offset: 2, Value: eventBytes("/d", "")}
	close(p0)
	close(p1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 0, msgs: p0}) }()
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 1, msgs: p1}) }()
	wg.Wait()

	if len(s.marked) != 4 {
		t.Fatalf("expected 4 marks total; got %v", s.marked)
	}
}

func TestReadyFollowsSession(t *testing.T) {
	c := newConsumerForTest(&fakeRegistry{})
	if err := c.Ready(context.Background()); err == nil {
		t.Fatalf("consumer without partitions must not be ready")
	}
	g := &groupHandler{process: c.ProcessOne, claimed: &c.claimed}
	s := &sess{ctx: t.Context(), claims: map[string][]int32{"gee-publish-events": {0, 1}}}
	if err := g.Setup(s); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := c.Ready(context.Background()); err != nil {
		t.Fatalf("Ready after setup: %v", err)
	}
	_ = g.Cleanup(s)
	if err := c.Ready(context.Background()); err == nil {
		t.Fatalf("ready after cleanup")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(" a:9092, ,b:9092 ", "topic", "group")
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "b:9092" || cfg.InitialOffsetOldest {
		t.Fatalf("cfg=%+v", cfg)
	}
}
