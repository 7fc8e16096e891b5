package assembly

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/analysis/gate"
	"github.com/ClarionAI/clarion/services/analysis/route"
	"github.com/ClarionAI/clarion/services/assembly/progress"
	"github.com/ClarionAI/clarion/services/llm"
)

// fakeBackend scripts per-station outcomes and records call order.
type fakeBackend struct {
	mu      sync.Mutex
	results map[string]llm.RewriteResult
	err     error
	calls   []string
	texts   []string
	onCall  func(station route.Station)
	started chan struct{}
	release chan struct{}
}

func (f *fakeBackend) Rewrite(ctx context.Context, station route.Station, text string) (llm.RewriteResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, station.Name)
	f.texts = append(f.texts, text)
	onCall := f.onCall
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if onCall != nil {
		onCall(station)
	}
	if f.err != nil {
		return llm.RewriteResult{}, f.err
	}
	if res, ok := f.results[station.Name]; ok {
		return res, nil
	}
	return llm.RewriteResult{Outcome: llm.OutcomeNoChange, RevisedText: text}, nil
}

func (f *fakeBackend) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func contextualViolation(kind detect.Kind, severity gate.Severity) gate.Violation {
	return gate.Violation{
		Detection: detect.Detection{Kind: kind, FlaggedText: string(kind), Sentence: "A sentence."},
		Severity:  severity,
	}
}

func newOrchestrator(t *testing.T, backend llm.RewriteBackend) *Orchestrator {
	t.Helper()
	o, err := New(Config{Backend: backend})
	require.NoError(t, err)
	return o
}

func baseRequest(violations ...gate.Violation) Request {
	return Request{
		SessionID:  "sess-1",
		BlockID:    "block-1",
		Content:    "The config was loaded.  It is very robust.",
		BlockType:  detect.BlockParagraph,
		Violations: violations,
	}
}

func TestRewriteBlockValidatesInput(t *testing.T) {
	o := newOrchestrator(t, &fakeBackend{})

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"empty session", Request{BlockID: "b", Content: "x"}, ErrEmptySession},
		{"empty block", Request{SessionID: "s", Content: "x"}, ErrEmptyBlock},
		{"empty content", Request{SessionID: "s", BlockID: "b"}, ErrEmptyContent},
		{"unknown block type", Request{SessionID: "s", BlockID: "b", Content: "x", BlockType: "banner"}, ErrUnknownBlockType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := o.RewriteBlock(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStationsRunInStrictOrderAndChainText(t *testing.T) {
	backend := &fakeBackend{results: map[string]llm.RewriteResult{
		route.StationStructural: {Outcome: llm.OutcomeApplied, RevisedText: "structural output", FixedCount: 1, Confidence: 0.9},
		route.StationGrammar:    {Outcome: llm.OutcomeNoChange},
		route.StationStyle:      {Outcome: llm.OutcomeApplied, RevisedText: "style output", FixedCount: 1, Confidence: 0.8},
	}}
	o := newOrchestrator(t, backend)

	req := baseRequest(
		contextualViolation(detect.KindSentenceFragment, gate.SeverityHigh),
		contextualViolation(detect.KindTenseShift, gate.SeverityMedium),
		contextualViolation(detect.KindWeakWording, gate.SeverityLow),
	)
	res, err := o.RewriteBlock(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{route.StationStructural, route.StationGrammar, route.StationStyle}, backend.callOrder())
	// Grammar sees Structural's output; Style sees the same text because
	// Grammar declined.
	assert.Equal(t, req.Content, backend.texts[0])
	assert.Equal(t, "structural output", backend.texts[1])
	assert.Equal(t, "structural output", backend.texts[2])
	assert.Equal(t, "style output", res.RevisedText)
}

func TestNoAbortWhenEveryStationFails(t *testing.T) {
	backend := &fakeBackend{err: errors.New("backend down")}
	o := newOrchestrator(t, backend)

	req := baseRequest(
		contextualViolation(detect.KindPassiveVoice, gate.SeverityHigh),
		contextualViolation(detect.KindWordiness, gate.SeverityLow),
	)
	res, err := o.RewriteBlock(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0, res.ErrorsFixed)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, req.Content, res.RevisedText)
	assert.False(t, res.Cancelled)
	for _, run := range res.StationRuns() {
		assert.Equal(t, StationFailed, run.Status)
		assert.Equal(t, "backend down", run.Reason)
	}
	assert.Equal(t, PassCompleted, res.Passes[0].Status)
}

func TestSurgicalFixesCountEvenWithoutStations(t *testing.T) {
	o := newOrchestrator(t, &fakeBackend{})

	// double_space is surgical; no contextual stations exist.
	v := gate.Violation{
		Detection: detect.Detection{Kind: detect.KindDoubleSpace, FlaggedText: "  "},
		Severity:  gate.SeverityHigh,
	}
	req := baseRequest(v)
	res, err := o.RewriteBlock(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, res.SurgicalFixed)
	assert.Equal(t, 1, res.ErrorsFixed)
	assert.NotContains(t, res.RevisedText, "  ")
	assert.Empty(t, res.StationRuns())
}

func TestCleanBlockReportsFullConfidence(t *testing.T) {
	o := newOrchestrator(t, &fakeBackend{})

	res, err := o.RewriteBlock(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, res.ErrorsFixed)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Empty(t, res.StationRuns())
}

func TestSurgicalOnlyRequestReportsFullConfidence(t *testing.T) {
	o := newOrchestrator(t, &fakeBackend{})

	v := gate.Violation{
		Detection: detect.Detection{Kind: detect.KindDoubleSpace, FlaggedText: "  "},
		Severity:  gate.SeverityHigh,
	}
	res, err := o.RewriteBlock(context.Background(), baseRequest(v))
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.Confidence)
}

func TestAggregationWeightsByViolationCount(t *testing.T) {
	backend := &fakeBackend{results: map[string]llm.RewriteResult{
		route.StationStructural: {Outcome: llm.OutcomeApplied, RevisedText: "fixed high", FixedCount: 3, Confidence: 0.9},
		route.StationGrammar:    {Outcome: llm.OutcomeNoChange},
	}}
	o := newOrchestrator(t, backend)

	req := baseRequest(
		contextualViolation(detect.KindPassiveVoice, gate.SeverityHigh),
		contextualViolation(detect.KindMissingActor, gate.SeverityHigh),
		contextualViolation(detect.KindSentenceFragment, gate.SeverityHigh),
		contextualViolation(detect.KindTenseShift, gate.SeverityMedium),
		contextualViolation(detect.KindSubjectAgreement, gate.SeverityMedium),
	)
	res, err := o.RewriteBlock(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 3, res.ErrorsFixed)
	// 3 violations at 0.9 plus 2 NoChange violations at 0: 2.7 / 5.
	assert.InDelta(t, 0.54, res.Confidence, 1e-9)

	runs := res.StationRuns()
	require.Len(t, runs, 2)
	assert.Equal(t, StationCompleted, runs[0].Status)
	assert.Equal(t, StationNoChange, runs[1].Status)
}

func TestDuplicateInFlightRejected(t *testing.T) {
	backend := &fakeBackend{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	o := newOrchestrator(t, backend)

	req := baseRequest(contextualViolation(detect.KindPassiveVoice, gate.SeverityHigh))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := o.RewriteBlock(context.Background(), req)
		assert.NoError(t, err)
	}()

	<-backend.started
	_, err := o.RewriteBlock(context.Background(), req)
	assert.ErrorIs(t, err, ErrRewriteInFlight)

	// A different block in the same session is not blocked.
	other := req
	other.BlockID = "block-2"
	other.Violations = nil
	_, err = o.RewriteBlock(context.Background(), other)
	assert.NoError(t, err)

	close(backend.release)
	wg.Wait()

	// The slot frees once the first request completes.
	_, err = o.RewriteBlock(context.Background(), req)
	assert.NoError(t, err)
}

func TestCancellationBetweenStationsYieldsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := &fakeBackend{
		results: map[string]llm.RewriteResult{
			route.StationStructural: {Outcome: llm.OutcomeApplied, RevisedText: "after structural", FixedCount: 2, Confidence: 0.9},
		},
		onCall: func(station route.Station) {
			if station.Name == route.StationStructural {
				cancel()
			}
		},
	}
	o := newOrchestrator(t, backend)

	req := baseRequest(
		contextualViolation(detect.KindPassiveVoice, gate.SeverityHigh),
		contextualViolation(detect.KindTenseShift, gate.SeverityMedium),
	)
	ch, unsub := o.Tracker().Subscribe(req.SessionID, req.BlockID)
	defer unsub()

	res, err := o.RewriteBlock(ctx, req)
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	assert.Equal(t, "after structural", res.RevisedText)
	assert.Equal(t, 2, res.ErrorsFixed)
	// Grammar never ran.
	assert.Equal(t, []string{route.StationStructural}, backend.callOrder())

	var sawCancelled bool
	for len(ch) > 0 {
		if (<-ch).Phase == progress.PhaseCancelled {
			sawCancelled = true
		}
	}
	assert.True(t, sawCancelled, "expected a terminal cancelled progress event")
}

func TestProgressIsMonotonicAndEndsAtHundred(t *testing.T) {
	backend := &fakeBackend{results: map[string]llm.RewriteResult{
		route.StationStructural: {Outcome: llm.OutcomeApplied, RevisedText: "a", FixedCount: 1, Confidence: 0.9},
		route.StationGrammar:    {Outcome: llm.OutcomeApplied, RevisedText: "b", FixedCount: 1, Confidence: 0.8},
		route.StationStyle:      {Outcome: llm.OutcomeApplied, RevisedText: "c", FixedCount: 1, Confidence: 0.7},
	}}
	o := newOrchestrator(t, backend)

	req := baseRequest(
		contextualViolation(detect.KindPassiveVoice, gate.SeverityHigh),
		contextualViolation(detect.KindTenseShift, gate.SeverityMedium),
		contextualViolation(detect.KindWeakWording, gate.SeverityLow),
	)
	ch, unsub := o.Tracker().Subscribe(req.SessionID, req.BlockID)
	defer unsub()

	_, err := o.RewriteBlock(context.Background(), req)
	require.NoError(t, err)

	last := -1
	final := 0
	for len(ch) > 0 {
		ev := <-ch
		assert.GreaterOrEqual(t, ev.Percent, last, "percent regressed at phase %s", ev.Phase)
		last = ev.Percent
		final = ev.Percent
	}
	assert.Equal(t, 100, final)
}

// Scenario: six accepted violations route into Structural (4 high) and
// Grammar (2 medium); Grammar declines, so only Structural's fixes count
// and Grammar reads NoChange rather than Failed.
func TestPartialFixScenario(t *testing.T) {
	backend := &fakeBackend{results: map[string]llm.RewriteResult{
		route.StationStructural: {Outcome: llm.OutcomeApplied, RevisedText: "structurally repaired", FixedCount: 4, Confidence: 0.85},
		route.StationGrammar:    {Outcome: llm.OutcomeNoChange},
	}}
	o := newOrchestrator(t, backend)

	req := baseRequest(
		contextualViolation(detect.KindPassiveVoice, gate.SeverityHigh),
		contextualViolation(detect.KindMissingActor, gate.SeverityHigh),
		contextualViolation(detect.KindSentenceFragment, gate.SeverityHigh),
		contextualViolation(detect.KindSubjectAgreement, gate.SeverityHigh),
		contextualViolation(detect.KindTenseShift, gate.SeverityMedium),
		contextualViolation(detect.KindWordiness, gate.SeverityMedium),
	)
	res, err := o.RewriteBlock(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 4, res.ErrorsFixed)
	runs := res.StationRuns()
	require.Len(t, runs, 2)
	assert.Equal(t, route.StationStructural, runs[0].Station.Name)
	assert.Equal(t, StationCompleted, runs[0].Status)
	assert.Equal(t, route.StationGrammar, runs[1].Station.Name)
	assert.Equal(t, StationNoChange, runs[1].Status)
	assert.Equal(t, "structurally repaired", res.RevisedText)
}

func TestStationElapsedIsRecorded(t *testing.T) {
	backend := &fakeBackend{
		onCall: func(route.Station) { time.Sleep(5 * time.Millisecond) },
		results: map[string]llm.RewriteResult{
			route.StationStyle: {Outcome: llm.OutcomeApplied, RevisedText: "styled", FixedCount: 1, Confidence: 0.6},
		},
	}
	o := newOrchestrator(t, backend)

	req := baseRequest(contextualViolation(detect.KindWeakWording, gate.SeverityLow))
	res, err := o.RewriteBlock(context.Background(), req)
	require.NoError(t, err)

	runs := res.StationRuns()
	require.Len(t, runs, 1)
	assert.Greater(t, runs[0].Elapsed, time.Duration(0))
}
