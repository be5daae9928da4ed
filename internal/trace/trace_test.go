package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLevelKeeps(t *testing.T) {
	cases := []struct {
		level Level
		kind  Kind
		scope Scope
		want  bool
	}{
		{LevelOff, KindFailure, ScopeRun, false},
		{LevelError, KindFailure, ScopeMember, true},
		{LevelError, KindSpanBegin, ScopeRun, false},
		{LevelPhase, KindSpanEnd, ScopePass, true},
		{LevelPhase, KindPoint, ScopeType, false},
		{LevelDetail, KindPoint, ScopeType, true},
		{LevelDetail, KindPoint, ScopeMember, false},
		{LevelDebug, KindPoint, ScopeMember, true},
	}
	for _, tc := range cases {
		if got := tc.level.Keeps(tc.kind, tc.scope); got != tc.want {
			t.Fatalf("%s keeps %s/%s: got=%v want=%v", tc.level, tc.kind, tc.scope, got, tc.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLevel("DETAIL"); err != nil || l != LevelDetail {
		t.Fatalf("level: got=%s, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("invalid level must fail")
	}
	if m, err := ParseMode("both"); err != nil || m != ModeBoth {
		t.Fatalf("mode: got=%s, %v", m, err)
	}
	if _, err := ParseMode("disk"); err == nil {
		t.Fatalf("invalid mode must fail")
	}
	if f, err := ParseFormat("json"); err != nil || f != FormatNDJSON {
		t.Fatalf("format: got=%d, %v", f, err)
	}
}

func TestRingWrapsOldestFirst(t *testing.T) {
	ring := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(ring, ScopeMember, name, "", 0)
	}
	snap := ring.Snapshot()
	var names []string
	for _, ev := range snap {
		names = append(names, ev.Name)
	}
	if got := strings.Join(names, ","); got != "c,d,e" {
		t.Fatalf("snapshot: got=%s want=c,d,e", got)
	}
	if snap[0].Seq >= snap[2].Seq {
		t.Fatalf("sequence must increase: %d then %d", snap[0].Seq, snap[2].Seq)
	}
	tail := ring.Tail(2)
	if len(tail) != 2 || tail[0].Name != "d" || tail[1].Name != "e" {
		t.Fatalf("tail: got=%+v", tail)
	}
	var buf bytes.Buffer
	if err := ring.Dump(&buf, FormatText, 1); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 1 || !strings.Contains(buf.String(), "e") {
		t.Fatalf("dump of one event:\n%s", buf.String())
	}
}

func TestStreamFlushesOnFailure(t *testing.T) {
	var buf bytes.Buffer
	stream := NewStreamTracer(&buf, LevelPhase, FormatText)
	Begin(stream, ScopePass, "methods", 0)
	if buf.Len() != 0 {
		t.Fatalf("pass begin must stay buffered: %q", buf.String())
	}
	Failure(stream, ScopeMember, "Run", errors.New("boom"), 0)
	if !strings.Contains(buf.String(), "methods") || !strings.Contains(buf.String(), "boom") {
		t.Fatalf("failure must flush buffered events:\n%s", buf.String())
	}
}

func TestSpanNestingThroughContext(t *testing.T) {
	ring := NewRingTracer(16, LevelPhase)
	ctx := WithTracer(context.Background(), ring)
	run := Begin(FromContext(ctx), ScopeRun, "weave Lib", CurrentSpan(ctx))
	ctx = WithSpan(ctx, run)
	pass := Begin(FromContext(ctx), ScopePass, "methods", CurrentSpan(ctx))
	Begin(FromContext(ctx), ScopeType, "NS.A", pass.ID()).End("")
	pass.End("")
	Failure(ring, ScopeMember, "Run", errors.New("boom"), pass.ID())
	run.WithExtra("types", "1").End("")

	snap := ring.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("events: got=%d want=5 (type scope dropped)", len(snap))
	}
	if snap[1].ParentID != run.ID() || snap[1].Scope != ScopePass {
		t.Fatalf("pass parent: got=%d want=%d", snap[1].ParentID, run.ID())
	}
	if snap[3].Kind != KindFailure || snap[3].Detail != "boom" {
		t.Fatalf("failure: got=%+v", snap[3])
	}
	end := snap[4]
	if end.Kind != KindSpanEnd || end.Extra["types"] != "1" || end.Extra["elapsed"] == "" {
		t.Fatalf("run end: got=%+v", end)
	}
}

func TestDisabledTracerIsInert(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatalf("default tracer must be Nop")
	}
	span := Begin(Nop, ScopeRun, "x", 0)
	span.WithExtra("k", "v").End("")
	if span.ID() != 0 {
		t.Fatalf("disabled span id: got=%d", span.ID())
	}
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("off config: got=%v, %v", tr, err)
	}
}

func TestStreamFormats(t *testing.T) {
	var text, js bytes.Buffer
	multi := NewMultiTracer(LevelDebug,
		NewStreamTracer(&text, LevelDebug, FormatText),
		NewStreamTracer(&js, LevelDebug, FormatNDJSON),
		NewRingTracer(4, LevelDebug),
	)
	span := Begin(multi, ScopePass, "interfaces", 0)
	span.WithExtra("n", "2").End("ok")
	if multi.Ring() == nil || len(multi.Ring().Snapshot()) != 2 {
		t.Fatalf("ring fan-out broken")
	}
	if err := multi.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !strings.Contains(text.String(), "  > interfaces\n") || !strings.Contains(text.String(), "< interfaces (ok) {elapsed=") {
		t.Fatalf("text output:\n%s", text.String())
	}
	lines := strings.Split(strings.TrimSpace(js.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("ndjson lines: got=%d want=2", len(lines))
	}
	var ev jsonEvent
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Kind != "end" || ev.Scope != "pass" || ev.Extra["n"] != "2" {
		t.Fatalf("ndjson event: got=%+v", ev)
	}
}

func TestNewPicksStorage(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	multi, ok := tr.(*MultiTracer)
	if !ok || multi.Ring() == nil {
		t.Fatalf("both mode: got=%T", tr)
	}
	if tr, err := New(Config{Level: LevelPhase, Mode: ModeRing}); err != nil {
		t.Fatalf("ring mode: %v", err)
	} else if _, ok := tr.(*RingTracer); !ok {
		t.Fatalf("ring mode: got=%T", tr)
	}
	if _, err := New(Config{Level: LevelPhase, Mode: StorageMode(9)}); err == nil {
		t.Fatalf("unknown mode must fail")
	}
}
