package analysis

import (
	"context"
	"sync"

	"soundscene/logger"
	"soundscene/model"
)

// Analyzer runs one asynchronous feature-extraction job against a track.
type Analyzer interface {
	Analyze(ctx context.Context, track model.Track) (model.AnalysisResult, error)
}

// ProgressFunc is notified as jobs resolve. progress is completed/total for
// the current batch.
type ProgressFunc func(trackID string, status model.AnalysisStatus, progress float64)

// Orchestrator schedules per-track analysis jobs and caches results for the
// session, so navigating back and forward does not re-trigger completed
// analyses.
type Orchestrator struct {
	analyzer Analyzer

	mu      sync.Mutex
	status  map[string]model.AnalysisStatus
	results map[string]model.AnalysisResult

	onProgress ProgressFunc
}

// NewOrchestrator creates an analysis orchestrator.
func NewOrchestrator(analyzer Analyzer) *Orchestrator {
	return &Orchestrator{
		analyzer: analyzer,
		status:   make(map[string]model.AnalysisStatus),
		results:  make(map[string]model.AnalysisResult),
	}
}

// OnProgress registers a progress callback (e.g. a websocket push).
func (o *Orchestrator) OnProgress(fn ProgressFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onProgress = fn
}

// Prime seeds the session cache with already-completed results, typically
// restored from the cache or remote store on project load.
func (o *Orchestrator) Prime(results map[string]model.AnalysisResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, r := range results {
		o.results[id] = r
		o.status[id] = model.AnalysisCompleted
	}
}

// Status returns a copy of the per-track status map.
func (o *Orchestrator) Status() map[string]model.AnalysisStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]model.AnalysisStatus, len(o.status))
	for id, s := range o.status {
		out[id] = s
	}
	return out
}

// Results returns a copy of the completed results keyed by track id.
func (o *Orchestrator) Results() map[string]model.AnalysisResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]model.AnalysisResult, len(o.results))
	for id, r := range o.results {
		out[id] = r
	}
	return out
}

// TracksNeedingAnalysis returns exactly the tracks whose job has not completed.
func (o *Orchestrator) TracksNeedingAnalysis(tracks []model.Track) []model.Track {
	o.mu.Lock()
	defer o.mu.Unlock()
	missing := make([]model.Track, 0, len(tracks))
	for _, t := range tracks {
		if o.status[t.ID] != model.AnalysisCompleted {
			missing = append(missing, t)
		}
	}
	return missing
}

// AnalyzeMissingTracks issues one job per missing track, all concurrently;
// the batch is bounded naturally by the number of missing tracks. A job
// failure is logged and leaves that track without a result; it neither aborts
// sibling jobs nor blocks the caller. The returned slice names the tracks
// whose job failed, for a non-fatal warning.
func (o *Orchestrator) AnalyzeMissingTracks(ctx context.Context, tracks []model.Track) []string {
	missing := o.TracksNeedingAnalysis(tracks)
	if len(missing) == 0 {
		return nil
	}

	total := len(missing)
	var completed int

	o.mu.Lock()
	for _, t := range missing {
		o.status[t.ID] = model.AnalysisPending
	}
	o.mu.Unlock()

	var wg sync.WaitGroup
	var failedMu sync.Mutex
	var failed []string

	for _, track := range missing {
		wg.Add(1)
		go func(track model.Track) {
			defer wg.Done()

			result, err := o.analyzer.Analyze(ctx, track)

			o.mu.Lock()
			var progress float64
			var status model.AnalysisStatus
			if err != nil {
				status = model.AnalysisFailed
				o.status[track.ID] = status
			} else {
				status = model.AnalysisCompleted
				o.status[track.ID] = status
				o.results[track.ID] = result
				completed++
			}
			progress = float64(completed) / float64(total)
			fn := o.onProgress
			o.mu.Unlock()

			if err != nil {
				logger.Warn("track analysis failed",
					logger.String("trackId", track.ID), logger.ErrorField(err))
				failedMu.Lock()
				failed = append(failed, track.ID)
				failedMu.Unlock()
			}
			if fn != nil {
				fn(track.ID, status, progress)
			}
		}(track)
	}

	wg.Wait()
	return failed
}

// Progress reports completed/known for the session's status map. With no
// tracked jobs it reports 1 so an empty batch never reads as stuck.
func (o *Orchestrator) Progress() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.status) == 0 {
		return 1
	}
	var completed int
	for _, s := range o.status {
		if s == model.AnalysisCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(o.status))
}

// Forget drops per-track session state, used when tracks are removed or the
// project is reset.
func (o *Orchestrator) Forget(trackIDs ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(trackIDs) == 0 {
		o.status = make(map[string]model.AnalysisStatus)
		o.results = make(map[string]model.AnalysisResult)
		return
	}
	for _, id := range trackIDs {
		delete(o.status, id)
		delete(o.results, id)
	}
}
