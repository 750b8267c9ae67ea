package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/band-algebra/internal/core/model"
	"github.com/mohammed-shakir/band-algebra/internal/invalidation"
)

type fakeStore struct {
	failFirst atomic.Bool
	mu        sync.Mutex
	seenDel   []string
}

func (f *fakeStore) DelCount(_ context.Context, keys ...string) (int64, error) {
	f.mu.Lock()
	f.seenDel = append(f.seenDel, keys...)
	f.mu.Unlock()
	if f.failFirst.Load() {
		f.failFirst.Store(false)
		return 0, errors.New("boom")
	}
	return int64(len(keys)), nil
}

func (f *fakeStore) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.seenDel)
}

type fakeMapper struct{}

func (fakeMapper) CellsForRegion(r model.Region, _ int) (model.Cells, error) {
	if r.BBox != nil {
		return model.Cells{"892a100d2b3ffff", "892a100d2b7ffff"}, nil
	}
	return model.Cells{"892a100d2b3ffff"}, nil
}

func (fakeMapper) Coarsen(cells model.Cells, res int) (model.Cells, error) {
	return model.Cells{"coarse"}, nil
}

type fakeRegistry struct {
	calls atomic.Int64
	err   error
}

func (f *fakeRegistry) RefreshRegistry(context.Context) error {
	f.calls.Add(1)
	return f.err
}

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
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

func (c *claim) Topic() string                            { return "scene-ingest" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func encode(ev invalidation.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}

func ingestBBox(scene string, ts time.Time) []byte {
	return encode(invalidation.Event{
		Version: 1, Op: invalidation.OpIngest, Platform: "COPERNICUS/S2_SR", Scene: scene, TS: ts,
		BBox: &invalidation.BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"},
	})
}

func newConsumerForTest(st *fakeStore, reg RegistryRefresher) *Consumer {
	cfg := Config{Brokers: []string{"x"}, Topic: "scene-ingest", GroupID: "g", DedupeSize: 16}
	return New(cfg, slog.Default(), st, fakeMapper{}, reg, []int{8, 6})
}

func TestSinglePartition_OrderAndCommitAfterWork(t *testing.T) {
	st := &fakeStore{}
	c := newConsumerForTest(st, nil)

	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- &sarama.ConsumerMessage{Topic: "scene-ingest", Partition: 0, Offset: 10, Value: ingestBBox("", time.Now().UTC())}
	ch <- &sarama.ConsumerMessage{Topic: "scene-ingest", Partition: 0, Offset: 11, Value: ingestBBox("", time.Now().UTC())}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
}

func TestKeys_AllResolutionsFromFinestCover(t *testing.T) {
	st := &fakeStore{}
	c := newConsumerForTest(st, nil)
	msg := &sarama.ConsumerMessage{Offset: 1, Value: ingestBBox("", time.Now().UTC())}
	if err := c.ProcessOne(context.Background(), msg); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	want := []string{
		"sum:COPERNICUS-S2_SR:6:coarse",
		"sum:COPERNICUS-S2_SR:8:892a100d2b3ffff",
		"sum:COPERNICUS-S2_SR:8:892a100d2b7ffff",
	}
	got := st.deleted()
	slices.Sort(got)
	if !slices.Equal(got, want) {
		t.Fatalf("deleted=%v want %v", got, want)
	}
}

func TestRetry_CommitOnceAfterSuccess(t *testing.T) {
	st := &fakeStore{}
	st.failFirst.Store(true)
	c := newConsumerForTest(st, nil)
	ctx := context.Background()

	msg := &sarama.ConsumerMessage{Topic: "scene-ingest", Partition: 0, Offset: 5, Value: ingestBBox("", time.Now().UTC())}
	if err := c.ProcessOne(ctx, msg); err == nil {
		t.Fatalf("expected error on first attempt")
	}

	s := &sess{ctx: ctx}
	g := &groupHandler{process: c.ProcessOne}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- msg
	close(ch)
	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim second attempt: %v", err)
	}
	if len(s.marked) != 1 || s.marked[0] != 5 {
		t.Fatalf("offset was not marked after success; marked=%v", s.marked)
	}
}

func TestPoisonMessagesAreSkipped(t *testing.T) {
	st := &fakeStore{}
	c := newConsumerForTest(st, nil)
	s := &sess{ctx: t.Context()}
	g := &groupHandler{process: c.ProcessOne}

	invalid := encode(invalidation.Event{Version: 1, Op: "update", Platform: "x", TS: time.Now()})
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- &sarama.ConsumerMessage{Offset: 1, Value: []byte("{not json")}
	ch <- &sarama.ConsumerMessage{Offset: 2, Value: invalid}
	close(ch)
	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 {
		t.Fatalf("poison messages must be marked, marked=%v", s.marked)
	}
	if len(st.deleted()) != 0 {
		t.Fatalf("nothing should be deleted")
	}
}

func TestSceneReplayIsIgnored(t *testing.T) {
	st := &fakeStore{}
	c := newConsumerForTest(st, nil)
	ctx := context.Background()
	ts := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)

	for i, body := range [][]byte{
		ingestBBox("T33VXF_20240610", ts),
		ingestBBox("T33VXF_20240610", ts),                 // redelivery
		ingestBBox("T33VXF_20240610", ts.Add(-time.Hour)), // stale
	} {
		if err := c.ProcessOne(ctx, &sarama.ConsumerMessage{Offset: int64(i), Value: body}); err != nil {
			t.Fatalf("ProcessOne %d: %v", i, err)
		}
	}
	if n := len(st.deleted()); n != 3 {
		t.Fatalf("only the first delivery should delete, got %d keys", n)
	}
	if err := c.ProcessOne(ctx, &sarama.ConsumerMessage{Value: ingestBBox("T33VXF_20240610", ts.Add(time.Hour))}); err != nil {
		t.Fatalf("ProcessOne newer: %v", err)
	}
	if n := len(st.deleted()); n != 6 {
		t.Fatalf("newer reprocess should delete again, got %d keys", n)
	}
}

func TestRegistryEventRefreshes(t *testing.T) {
	st := &fakeStore{}
	reg := &fakeRegistry{}
	c := newConsumerForTest(st, reg)
	body := encode(invalidation.Event{Version: 1, Op: invalidation.OpRegistry, TS: time.Now().UTC()})

	if err := c.ProcessOne(context.Background(), &sarama.ConsumerMessage{Value: body}); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if reg.calls.Load() != 1 {
		t.Fatalf("refresh calls=%d", reg.calls.Load())
	}
	if len(st.deleted()) != 0 {
		t.Fatalf("registry events must not touch summaries")
	}

	reg.err = errors.New("upstream 503")
	err := c.ProcessOne(context.Background(), &sarama.ConsumerMessage{Value: body})
	if err == nil || !strings.Contains(err.Error(), "upstream 503") {
		t.Fatalf("err=%v", err)
	}

	noReg := newConsumerForTest(st, nil)
	if err := noReg.ProcessOne(context.Background(), &sarama.ConsumerMessage{Value: body}); err != nil {
		t.Fatalf("registry event without refresher: %v", err)
	}
}

func TestMultiPartition_Parallel_NoCrossOrdering(t *testing.T) {
	st := &fakeStore{}
	c := newConsumerForTest(st, nil)
	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}

	p0 := make(chan *sarama.ConsumerMessage, 2)
	p1 := make(chan *sarama.ConsumerMessage, 2)
	for off := int64(1); off <= 2; off++ {
		p0 <- &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: off, Value: ingestBBox("", time.Now().UTC())}
		p1 <- &sarama.ConsumerMessage{Topic: "t", Partition: 1, Offset: off, Value: ingestBBox("", time.Now().UTC())}
	}
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
