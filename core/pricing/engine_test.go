package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"soundscene/model"
)

// fakeQuoter records calls and prices each unit type at a fixed per-second rate.
type fakeQuoter struct {
	mu    sync.Mutex
	calls int
	fail  bool
	rates map[string]float64
}

func newFakeQuoter() *fakeQuoter {
	return &fakeQuoter{rates: map[string]float64{
		UnitImage:     0.5,
		UnitAnimation: 0.4,
		UnitScene:     0.8,
	}}
}

func (q *fakeQuoter) Quote(_ context.Context, unitType string, durationSeconds float64, _ string) (float64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if q.fail {
		return 0, errors.New("quote service down")
	}
	return q.rates[unitType] * durationSeconds, nil
}

func (q *fakeQuoter) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

func TestDurationUnits(t *testing.T) {
	durations := []float64{75, 45}

	if got := DurationUnits(true, durations); got != 75 {
		t.Fatalf("reused artifact must cover the longest track: got %f", got)
	}
	if got := DurationUnits(false, durations); got != 120 {
		t.Fatalf("distinct artifacts must cover every track: got %f", got)
	}
	if got := DurationUnits(true, nil); got != 0 {
		t.Fatalf("empty track list: got %f", got)
	}
}

func TestEstimatePicksCheaperRendering(t *testing.T) {
	quoter := newFakeQuoter()
	engine := NewEngine(quoter, 0)

	settings := model.Settings{GraphicsType: model.GraphicsStaticImage}
	// image: 120 * 0.5 = 60, animation: 120 * 0.4 = 48.
	if got := engine.Estimate(context.Background(), settings, []float64{75, 45}); got != 48 {
		t.Fatalf("expected the cheaper rendering (48), got %f", got)
	}
}

func TestEstimateReuseBillsLongestTrack(t *testing.T) {
	quoter := newFakeQuoter()
	engine := NewEngine(quoter, 0)

	settings := model.Settings{GraphicsType: model.GraphicsStaticImage, UseSameVideoForAll: true}
	// units = max(75, 45) = 75; animation wins: 75 * 0.4 = 30.
	if got := engine.Estimate(context.Background(), settings, []float64{75, 45}); got != 30 {
		t.Fatalf("expected 30 for a reused artifact, got %f", got)
	}
}

func TestEstimateMultiSceneUsesSceneModel(t *testing.T) {
	quoter := newFakeQuoter()
	engine := NewEngine(quoter, 0)

	settings := model.Settings{GraphicsType: model.GraphicsMultiScene}
	if got := engine.Estimate(context.Background(), settings, []float64{75, 45}); got != 96 {
		t.Fatalf("expected the scene quote (96), got %f", got)
	}
}

func TestEstimateMemoizesQuotes(t *testing.T) {
	quoter := newFakeQuoter()
	engine := NewEngine(quoter, 0)

	settings := model.Settings{GraphicsType: model.GraphicsStaticImage}
	engine.Estimate(context.Background(), settings, []float64{60})
	after := quoter.callCount()

	engine.Estimate(context.Background(), settings, []float64{60})
	if quoter.callCount() != after {
		t.Fatalf("identical inputs hit the quote service again: %d calls", quoter.callCount())
	}

	// A new duration must go upstream.
	engine.Estimate(context.Background(), settings, []float64{61})
	if quoter.callCount() == after {
		t.Fatal("changed duration did not hit the quote service")
	}
}

func TestEstimateFallsBackToLastGood(t *testing.T) {
	quoter := newFakeQuoter()
	engine := NewEngine(quoter, 0)
	settings := model.Settings{GraphicsType: model.GraphicsStaticImage}

	good := engine.Estimate(context.Background(), settings, []float64{60})
	if good == 0 {
		t.Fatal("expected a real estimate before the outage")
	}

	quoter.mu.Lock()
	quoter.fail = true
	quoter.mu.Unlock()

	if got := engine.Estimate(context.Background(), settings, []float64{90}); got != good {
		t.Fatalf("outage did not fall back to last estimate: got %f, want %f", got, good)
	}
}

func TestEstimateZeroDurationIsFree(t *testing.T) {
	engine := NewEngine(newFakeQuoter(), 10)
	settings := model.Settings{GraphicsType: model.GraphicsStaticImage}
	if got := engine.Estimate(context.Background(), settings, nil); got != 0 {
		t.Fatalf("no tracks must quote 0, got %f", got)
	}
}
