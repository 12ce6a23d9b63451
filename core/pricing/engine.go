package pricing

import (
	"context"
	"fmt"
	"sync"

	"soundscene/logger"
	"soundscene/model"
)

// Cost model identifiers sent to the quote service.
const (
	UnitImage     = "image"
	UnitAnimation = "animation"
	UnitScene     = "scene"

	ModelImage     = "image-v2"
	ModelAnimation = "animation-v2"
	ModelScene     = "scene-v1"
)

// Quoter returns a credit quote for rendering unitType over the given
// duration with the named cost model.
type Quoter interface {
	Quote(ctx context.Context, unitType string, durationSeconds float64, costModel string) (float64, error)
}

// DurationUnits converts track durations into billable duration. A reused
// artifact is produced once and must cover the longest track; distinct
// artifacts must each cover their own track.
func DurationUnits(reuseAcrossTracks bool, durations []float64) float64 {
	if len(durations) == 0 {
		return 0
	}
	if reuseAcrossTracks {
		max := durations[0]
		for _, d := range durations[1:] {
			if d > max {
				max = d
			}
		}
		return max
	}
	var sum float64
	for _, d := range durations {
		sum += d
	}
	return sum
}

// Engine turns settings and track durations into a credit quote. Quotes are
// memoized per (unit, duration, model) against the upstream service, and a
// failed quote falls back to the last successful estimate instead of
// blocking the caller.
type Engine struct {
	quoter Quoter

	mu       sync.Mutex
	memo     map[string]float64
	lastGood float64
}

// NewEngine creates a pricing engine. fallback is the estimate reported
// before any quote has succeeded.
func NewEngine(quoter Quoter, fallback float64) *Engine {
	return &Engine{
		quoter:   quoter,
		memo:     make(map[string]float64),
		lastGood: fallback,
	}
}

// Estimate computes the displayed credit estimate for the given settings and
// ordered track durations.
func (e *Engine) Estimate(ctx context.Context, settings model.Settings, durations []float64) float64 {
	units := DurationUnits(settings.UseSameVideoForAll, durations)
	if units == 0 {
		return 0
	}

	var price float64
	var err error
	switch settings.GraphicsType {
	case model.GraphicsMultiScene:
		price, err = e.quote(ctx, UnitScene, units, ModelScene)
	default:
		// static-image and animated-loop are equivalent renderings of the
		// same units; the cheaper of the two wins the headline number.
		price, err = e.cheaperOf(ctx, units)
	}
	if err != nil {
		e.mu.Lock()
		price = e.lastGood
		e.mu.Unlock()
		logger.Warn("price quote failed, using last known estimate",
			logger.ErrorField(err), logger.Float64("fallback", price))
		return price
	}

	e.mu.Lock()
	e.lastGood = price
	e.mu.Unlock()
	return price
}

func (e *Engine) cheaperOf(ctx context.Context, units float64) (float64, error) {
	image, err := e.quote(ctx, UnitImage, units, ModelImage)
	if err != nil {
		return 0, err
	}
	animation, err := e.quote(ctx, UnitAnimation, units, ModelAnimation)
	if err != nil {
		return 0, err
	}
	if animation < image {
		return animation, nil
	}
	return image, nil
}

func (e *Engine) quote(ctx context.Context, unitType string, units float64, costModel string) (float64, error) {
	key := fmt.Sprintf("%s:%.3f:%s", unitType, units, costModel)

	e.mu.Lock()
	if cached, ok := e.memo[key]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	price, err := e.quoter.Quote(ctx, unitType, units, costModel)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	e.memo[key] = price
	e.mu.Unlock()
	return price, nil
}
