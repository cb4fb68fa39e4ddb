package view

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"code.sztanpet.net/zvpsz/planes-around/internal/display"
	"code.sztanpet.net/zvpsz/planes-around/internal/planes"
	gc "gopkg.in/check.v1"
)

func Test(t *testing.T) { gc.TestingT(t) }

func fp(f float64) *float64 { return &f }

// recordingPanel keeps the spans of every shown frame
type recordingPanel struct {
	mu     sync.Mutex
	frames [][]display.Span
}

func (p *recordingPanel) Show(f *display.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, f.Spans)
	return nil
}

func (p *recordingPanel) Close() error { return nil }

func (p *recordingPanel) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

func (p *recordingPanel) last() []display.Span {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.frames) == 0 {
		return nil
	}
	return p.frames[len(p.frames)-1]
}

func texts(spans []display.Span) []string {
	var out []string
	for _, s := range spans {
		out = append(out, s.Text)
	}
	return out
}

// fakeFeed returns recs, or blocks until cancelled when block is set
type fakeFeed struct {
	mu    sync.Mutex
	recs  []planes.Record
	block bool
	calls int
}

func (f *fakeFeed) Planes(ctx context.Context) ([]planes.Record, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	recs := append([]planes.Record(nil), f.recs...)
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return recs, nil
}

func (f *fakeFeed) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen [][]planes.Record
}

func (r *fakeRecorder) Record(recs []planes.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recs)
}

type fakeButton struct {
	pressed bool
}

func (b *fakeButton) Pressed() bool { return b.pressed }

// waitFor polls cond until it holds or a second passed
func waitFor(c *gc.C, what string, cond func() bool) {
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			c.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

var nearby = []planes.Record{
	{Type: "A320", Callsign: "RYR1AB", Registration: "EI-ABC", Altitude: fp(3500), Direction: fp(187.4), Distance: 5},
	{Type: "B738", Callsign: "WZZ23", Registration: "HA-LXA", Altitude: fp(36000), Direction: fp(92), Distance: 12.5},
	{Type: planes.Unknown, Callsign: planes.Unknown, Registration: planes.Unknown, Distance: math.Inf(1)},
}

type formatSuite struct{}

var _ = gc.Suite(&formatSuite{})

func (s *formatSuite) TestKm(c *gc.C) {
	c.Check(Km(5.0), gc.Equals, "9")
	c.Check(Km(10), gc.Equals, "19")
	c.Check(Km(0), gc.Equals, "0")
	c.Check(Km(math.Inf(1)), gc.Equals, "unk")

	c.Check(KmTenths(5.0), gc.Equals, "9.3")
	c.Check(KmTenths(math.Inf(1)), gc.Equals, "unk")
}

func (s *formatSuite) TestFlightLevel(c *gc.C) {
	c.Check(FlightLevel(planes.Record{Altitude: fp(3500)}), gc.Equals, "035")
	c.Check(FlightLevel(planes.Record{Altitude: fp(36075)}), gc.Equals, "360")
	c.Check(FlightLevel(planes.Record{Altitude: fp(99)}), gc.Equals, "000")
	c.Check(FlightLevel(planes.Record{Altitude: fp(-75)}), gc.Equals, "000")
	c.Check(FlightLevel(planes.Record{Altitude: fp(0), OnGround: true}), gc.Equals, "GND")
	c.Check(FlightLevel(planes.Record{}), gc.Equals, "unk")

	c.Check(Feet(planes.Record{Altitude: fp(3500)}), gc.Equals, "3500ft")
	c.Check(Feet(planes.Record{OnGround: true}), gc.Equals, "GND")
	c.Check(Feet(planes.Record{}), gc.Equals, "unk")
}

func (s *formatSuite) TestHeading(c *gc.C) {
	c.Check(Heading(fp(187.4)), gc.Equals, "187°")
	c.Check(Heading(fp(0)), gc.Equals, "0°")
	c.Check(Heading(fp(359.7)), gc.Equals, "0°")
	c.Check(Heading(fp(-90)), gc.Equals, "270°")
	c.Check(Heading(nil), gc.Equals, "unk")
}

func (s *formatSuite) TestClip(c *gc.C) {
	c.Check(clip("A320", 4), gc.Equals, "A320")
	c.Check(clip("GLID1", 4), gc.Equals, "GLID")
	c.Check(clip("é", 4), gc.Equals, "é")
}

type taskSuite struct{}

var _ = gc.Suite(&taskSuite{})

func (s *taskSuite) TestCancelIsClean(c *gc.C) {
	t := Start(context.Background(), "sleeper", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	c.Check(t.Name(), gc.Equals, "sleeper")

	select {
	case <-t.Done():
		c.Fatalf("task returned before it was cancelled")
	default:
	}
	c.Check(t.Stop(), gc.IsNil)
}

func (s *taskSuite) TestOwnFailure(c *gc.C) {
	t := Start(context.Background(), "broken", func(ctx context.Context) error {
		return errors.New("boom")
	})
	c.Check(t.Wait(), gc.ErrorMatches, "boom")
	// waiting again is fine
	c.Check(t.Stop(), gc.ErrorMatches, "boom")
}

func (s *taskSuite) TestParentCancel(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	t := Start(ctx, "child", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cancel()
	c.Check(t.Wait(), gc.IsNil)
}

func (s *taskSuite) TestRotation(c *gc.C) {
	r := NewRotation(View{Name: "a"}, View{Name: "b"})
	c.Check(r.Current().Name, gc.Equals, "a")
	c.Check(r.Next().Name, gc.Equals, "b")
	c.Check(r.Index(), gc.Equals, 1)
	c.Check(r.Next().Name, gc.Equals, "a")
	c.Check(r.Current().Name, gc.Equals, "a")
}

type viewSuite struct {
	panel    *recordingPanel
	screen   *display.Screen
	list     *planes.List
	feed     *fakeFeed
	recorder *fakeRecorder
	summary  *Summary
	detail   *Detail
}

var _ = gc.Suite(&viewSuite{})

func (s *viewSuite) SetUpTest(c *gc.C) {
	s.panel = &recordingPanel{}
	s.screen = display.NewScreen(s.panel)
	s.list = &planes.List{}
	s.feed = &fakeFeed{recs: nearby}
	s.recorder = &fakeRecorder{}
	s.summary = &Summary{
		Feed:     s.feed,
		List:     s.list,
		Screen:   s.screen,
		Palette:  display.DefaultPalette(),
		Radius:   10,
		Interval: time.Hour,
		Recorder: s.recorder,
	}
	s.detail = &Detail{
		List:    s.list,
		Screen:  s.screen,
		Palette: display.DefaultPalette(),
	}
}

func (s *viewSuite) TestSummaryDraw(c *gc.C) {
	c.Assert(s.summary.Draw(nearby), gc.IsNil)

	spans := s.panel.last()
	c.Check(texts(spans), gc.DeepEquals, []string{
		"19km radius: 3 planes",
		"A320", "RYR1AB", "035", "187°", "9",
		"B738", "WZZ23", "360", "92°", "23",
		"unk", "unk", "unk", "unk", "unk",
	})

	p := display.DefaultPalette()
	c.Check(spans[0].Pen, gc.Equals, p.Header)
	c.Check(spans[0].Y, gc.Equals, 0)
	c.Check(spans[1], gc.Equals, display.Span{X: colType, Y: 18, Scale: 1, Text: "A320", Pen: p.Type})
	c.Check(spans[2].Pen, gc.Equals, p.Callsign)
	c.Check(spans[3].X, gc.Equals, colAlt)
	c.Check(spans[4].Pen, gc.Equals, p.Direction)
	c.Check(spans[5].X, gc.Equals, colDist)
	c.Check(spans[6].Y, gc.Equals, 34)
}

func (s *viewSuite) TestSummaryEmpty(c *gc.C) {
	c.Assert(s.summary.Draw(nil), gc.IsNil)
	c.Check(texts(s.panel.last()), gc.DeepEquals, []string{"19km radius: 0 planes"})
}

func (s *viewSuite) TestSummaryRowsFit(c *gc.C) {
	var recs []planes.Record
	for i := 0; i < 20; i++ {
		recs = append(recs, planes.Record{Type: "C172", Callsign: "N123", Distance: float64(i)})
	}
	c.Assert(s.summary.Draw(recs), gc.IsNil)

	spans := s.panel.last()
	c.Check(spans[0].Text, gc.Equals, "19km radius: 20 planes")
	c.Check(spans, gc.HasLen, 1+7*5)
	c.Check(spans[len(spans)-1].Y+rowHeight <= display.Height, gc.Equals, true)
}

func (s *viewSuite) TestSummaryRunUntilCancelled(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	t := Start(ctx, "summary", s.summary.Run)

	waitFor(c, "first frame", func() bool { return s.panel.count() == 1 })
	c.Check(s.list.Len(), gc.Equals, 3)
	c.Check(s.recorder.seen, gc.HasLen, 1)

	// the hour long sleep is cut short
	cancel()
	c.Check(t.Wait(), gc.IsNil)
	c.Check(s.feed.Calls(), gc.Equals, 1)
}

func (s *viewSuite) TestSummaryPolls(c *gc.C) {
	s.summary.Interval = time.Millisecond
	t := Start(context.Background(), "summary", s.summary.Run)

	waitFor(c, "three polls", func() bool { return s.feed.Calls() >= 3 })
	c.Check(t.Stop(), gc.IsNil)
}

func (s *viewSuite) TestSummaryCancelledDuringFetch(c *gc.C) {
	s.feed.block = true
	t := Start(context.Background(), "summary", s.summary.Run)

	waitFor(c, "fetch", func() bool { return s.feed.Calls() == 1 })
	c.Check(t.Stop(), gc.IsNil)
	c.Check(s.panel.count(), gc.Equals, 0)
}

func (s *viewSuite) TestDetail(c *gc.C) {
	s.list.Set(nearby)
	c.Assert(s.detail.Run(context.Background()), gc.IsNil)

	spans := s.panel.last()
	c.Check(texts(spans), gc.DeepEquals, []string{
		"A320", "RYR1AB", "EI-ABC", "3500ft", "187°", "9.3km",
	})
	p := display.DefaultPalette()
	c.Check(spans[2].Pen, gc.Equals, p.Registration)
	c.Check(spans[5].Pen, gc.Equals, p.Distance)
	c.Check(spans[1].Y-spans[0].Y, gc.Equals, lineHeight)
}

func (s *viewSuite) TestDetailUnknownDistance(c *gc.C) {
	s.list.Set(nearby[2:])
	c.Assert(s.detail.Run(context.Background()), gc.IsNil)
	c.Check(texts(s.panel.last()), gc.DeepEquals, []string{"unk", "unk", "unk", "unk", "unk", "unk"})
}

func (s *viewSuite) TestDetailEmpty(c *gc.C) {
	c.Assert(s.detail.Run(context.Background()), gc.IsNil)

	spans := s.panel.last()
	c.Assert(spans, gc.HasLen, 1)
	c.Check(spans[0].Text, gc.Equals, "No planes!")
	c.Check(spans[0].Scale, gc.Equals, 2)
	c.Check(spans[0].Pen, gc.Equals, display.DefaultPalette().Placeholder)
}

type switcherSuite struct {
	v      viewSuite
	a, b   *fakeButton
	starts map[string]int
	mu     sync.Mutex
	sw     *Switcher
}

var _ = gc.Suite(&switcherSuite{})

func (s *switcherSuite) SetUpTest(c *gc.C) {
	s.v.SetUpTest(c)
	s.a, s.b = &fakeButton{}, &fakeButton{}
	s.starts = map[string]int{}

	counted := func(name string, run func(context.Context) error) View {
		return View{Name: name, Run: func(ctx context.Context) error {
			s.mu.Lock()
			s.starts[name]++
			s.mu.Unlock()
			return run(ctx)
		}}
	}
	rot := NewRotation(counted("summary", s.v.summary.Run), counted("detail", s.v.detail.Run))
	s.sw = NewSwitcher(rot, s.a, s.b)
}

func (s *switcherSuite) started(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts[name]
}

func (s *switcherSuite) tick(c *gc.C, ctx context.Context) {
	c.Assert(s.sw.Tick(ctx), gc.IsNil)
}

func (s *switcherSuite) TestSwitchBackAndForth(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.sw.start(ctx)
	c.Check(s.sw.Active(), gc.Equals, "summary")
	waitFor(c, "summary frame", func() bool { return s.v.panel.count() == 1 })
	summary := s.sw.active

	// A: summary -> detail, the summary sleep is cancelled and joined
	s.a.pressed = true
	s.tick(c, ctx)
	c.Check(s.sw.Active(), gc.Equals, "detail")
	select {
	case <-summary.Done():
	default:
		c.Fatalf("summary still running after the switch")
	}
	waitFor(c, "detail frame", func() bool { return s.v.panel.count() == 2 })
	c.Check(texts(s.v.panel.last())[1], gc.Equals, "RYR1AB")

	// held button, no more transitions
	for i := 0; i < 5; i++ {
		s.tick(c, ctx)
	}
	c.Check(s.sw.Active(), gc.Equals, "detail")
	c.Check(s.started("detail"), gc.Equals, 1)

	s.a.pressed = false
	s.tick(c, ctx)

	// A again: back to summary, which polls again
	s.a.pressed = true
	s.tick(c, ctx)
	c.Check(s.sw.Active(), gc.Equals, "summary")
	waitFor(c, "second poll", func() bool { return s.v.feed.Calls() == 2 })
	c.Check(s.started("summary"), gc.Equals, 2)
	c.Check(s.started("detail"), gc.Equals, 1)
}

func (s *switcherSuite) TestButtonBOnlyLatches(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.sw.start(ctx)

	s.b.pressed = true
	s.tick(c, ctx)
	c.Check(s.sw.Active(), gc.Equals, "summary")

	// A while B is still held is swallowed by the latch
	s.a.pressed = true
	s.tick(c, ctx)
	c.Check(s.sw.Active(), gc.Equals, "summary")

	// releasing only B keeps the latch
	s.b.pressed = false
	s.tick(c, ctx)
	c.Check(s.sw.Active(), gc.Equals, "summary")

	s.a.pressed = false
	s.tick(c, ctx)
	s.a.pressed = true
	s.tick(c, ctx)
	c.Check(s.sw.Active(), gc.Equals, "detail")
}

func (s *switcherSuite) TestSwitchDuringFetch(c *gc.C) {
	s.v.feed.block = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.sw.start(ctx)
	waitFor(c, "fetch", func() bool { return s.v.feed.Calls() == 1 })

	s.a.pressed = true
	s.tick(c, ctx)
	c.Check(s.sw.Active(), gc.Equals, "detail")
	waitFor(c, "placeholder", func() bool { return s.v.panel.count() == 1 })
	c.Check(texts(s.v.panel.last()), gc.DeepEquals, []string{"No planes!"})
}

func (s *switcherSuite) TestFailingViewIsReported(c *gc.C) {
	failing := View{Name: "broken", Run: func(ctx context.Context) error {
		return errors.New("screen gone")
	}}
	sw := NewSwitcher(NewRotation(failing, View{Name: "detail", Run: s.v.detail.Run}), s.a, s.b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sw.start(ctx)

	s.a.pressed = true
	c.Check(sw.Tick(ctx), gc.ErrorMatches, "screen gone")
	c.Check(sw.Active(), gc.Equals, "detail")
}

func (s *switcherSuite) TestRunStopsActiveView(c *gc.C) {
	old := TickDurr
	TickDurr = time.Millisecond
	defer func() { TickDurr = old }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.sw.Run(ctx) }()

	waitFor(c, "summary frame", func() bool { return s.v.panel.count() == 1 })
	cancel()
	c.Check(<-done, gc.IsNil)
	c.Check(s.v.feed.Calls(), gc.Equals, 1)
}
