package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"soundscene/model"
)

// fakeAnalyzer fails the track ids in failing and succeeds everything else.
type fakeAnalyzer struct {
	mu      sync.Mutex
	failing map[string]bool
	calls   map[string]int
}

func newFakeAnalyzer(failing ...string) *fakeAnalyzer {
	f := &fakeAnalyzer{failing: make(map[string]bool), calls: make(map[string]int)}
	for _, id := range failing {
		f.failing[id] = true
	}
	return f
}

func (f *fakeAnalyzer) Analyze(_ context.Context, track model.Track) (model.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[track.ID]++
	if f.failing[track.ID] {
		return model.AnalysisResult{}, errors.New("analysis backend error")
	}
	return model.AnalysisResult{TrackID: track.ID, Tempo: 120, Duration: track.Duration}, nil
}

func (f *fakeAnalyzer) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeAnalyzer) heal(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failing, id)
}

func tracks(ids ...string) []model.Track {
	out := make([]model.Track, len(ids))
	for i, id := range ids {
		out[i] = model.Track{ID: id, Duration: 30}
	}
	return out
}

func TestFailedJobsStayOutstanding(t *testing.T) {
	analyzer := newFakeAnalyzer("bad")
	o := NewOrchestrator(analyzer)
	batch := tracks("good", "bad")

	failed := o.AnalyzeMissingTracks(context.Background(), batch)
	if len(failed) != 1 || failed[0] != "bad" {
		t.Fatalf("unexpected failed set: %v", failed)
	}

	// The failure did not abort the sibling job.
	if _, ok := o.Results()["good"]; !ok {
		t.Fatal("successful sibling has no result")
	}

	missing := o.TracksNeedingAnalysis(batch)
	if len(missing) != 1 || missing[0].ID != "bad" {
		t.Fatalf("outstanding set wrong after failure: %v", missing)
	}
}

func TestRetryOnlyRunsOutstandingJobs(t *testing.T) {
	analyzer := newFakeAnalyzer("bad")
	o := NewOrchestrator(analyzer)
	batch := tracks("good", "bad")

	o.AnalyzeMissingTracks(context.Background(), batch)
	analyzer.heal("bad")

	failed := o.AnalyzeMissingTracks(context.Background(), batch)
	if len(failed) != 0 {
		t.Fatalf("retry still failing: %v", failed)
	}
	if analyzer.callsFor("good") != 1 {
		t.Fatalf("completed track re-analyzed: %d calls", analyzer.callsFor("good"))
	}
	if analyzer.callsFor("bad") != 2 {
		t.Fatalf("failed track not retried: %d calls", analyzer.callsFor("bad"))
	}

	if missing := o.TracksNeedingAnalysis(batch); len(missing) != 0 {
		t.Fatalf("outstanding set not empty after convergence: %v", missing)
	}
}

func TestPrimeSkipsRestoredResults(t *testing.T) {
	analyzer := newFakeAnalyzer()
	o := NewOrchestrator(analyzer)

	o.Prime(map[string]model.AnalysisResult{"a": {TrackID: "a", Tempo: 98}})
	failed := o.AnalyzeMissingTracks(context.Background(), tracks("a", "b"))
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	if analyzer.callsFor("a") != 0 {
		t.Fatal("restored result re-analyzed")
	}
	if analyzer.callsFor("b") != 1 {
		t.Fatal("new track not analyzed")
	}
}

func TestProgressCallbackSeesEveryResolution(t *testing.T) {
	analyzer := newFakeAnalyzer("bad")
	o := NewOrchestrator(analyzer)

	var mu sync.Mutex
	events := make(map[string]model.AnalysisStatus)
	o.OnProgress(func(trackID string, status model.AnalysisStatus, progress float64) {
		mu.Lock()
		defer mu.Unlock()
		events[trackID] = status
		if progress < 0 || progress > 1 {
			t.Errorf("progress out of range: %f", progress)
		}
	})

	o.AnalyzeMissingTracks(context.Background(), tracks("good", "bad"))

	mu.Lock()
	defer mu.Unlock()
	if events["good"] != model.AnalysisCompleted {
		t.Fatalf("good track status: %s", events["good"])
	}
	if events["bad"] != model.AnalysisFailed {
		t.Fatalf("bad track status: %s", events["bad"])
	}
}

func TestProgressWithNoJobsReadsComplete(t *testing.T) {
	o := NewOrchestrator(newFakeAnalyzer())
	if got := o.Progress(); got != 1 {
		t.Fatalf("empty batch progress: %f", got)
	}
}

func TestForgetClearsPerTrackState(t *testing.T) {
	o := NewOrchestrator(newFakeAnalyzer())
	o.AnalyzeMissingTracks(context.Background(), tracks("a", "b"))

	o.Forget("a")
	if _, ok := o.Results()["a"]; ok {
		t.Fatal("forgotten track still has a result")
	}
	if _, ok := o.Results()["b"]; !ok {
		t.Fatal("unrelated track was forgotten")
	}

	o.Forget()
	if len(o.Results()) != 0 || len(o.Status()) != 0 {
		t.Fatal("full forget left state behind")
	}
}
