// Package anomaly flags deviating AggregatedPrice observations using a
// rolling-window z-score, deviation, volume-spike, and confidence rule
// set. The age of an observation is not checked.
package anomaly

import (
	"math"
	"sync"
	"time"

	"github.com/nhbchain/riskengine/price"
)

// Config groups the detector's tuning knobs.
type Config struct {
	ZThreshold               float64
	PriceDeviationThreshold  float64
	VolumeSpikeThreshold     float64
	ConfidenceThreshold      float64
	Window                   time.Duration
}

// DefaultConfig returns conservative defaults for a 60-minute window.
func DefaultConfig() Config {
	return Config{
		ZThreshold:              3,
		PriceDeviationThreshold: 0.05,
		VolumeSpikeThreshold:    3,
		ConfidenceThreshold:     0.8,
		Window:                  60 * time.Minute,
	}
}

// Observation is the result of evaluating a single price point.
type Observation struct {
	Anomalous bool
	Score     float64
}

type point struct {
	price     float64
	volume    float64
	observedAt time.Time
}

type tokenWindow struct {
	mu     sync.Mutex
	points []point
}

// Detector maintains a rolling window of observations per token.
type Detector struct {
	cfg     Config
	mu      sync.Mutex
	windows map[string]*tokenWindow
}

// New constructs a Detector.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg, windows: make(map[string]*tokenWindow)}
}

func (d *Detector) window(token string) *tokenWindow {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[token]
	if !ok {
		w = &tokenWindow{}
		d.windows[token] = w
	}
	return w
}

// Observe evaluates ap against the rolling window for its token, applying
// the z-score, deviation, volume-spike, and confidence rules; any rule
// firing sets Anomalous=true. The point is always appended to the window
// so anomalous points still feed future comparisons, just flagged.
func (d *Detector) Observe(ap price.AggregatedPrice, volume float64) Observation {
	return d.observeAt(ap, volume, time.Now())
}

func (d *Detector) observeAt(ap price.AggregatedPrice, volume float64, now time.Time) Observation {
	w := d.window(ap.Token.String())
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-d.cfg.Window)
	kept := w.points[:0]
	for _, p := range w.points {
		if p.observedAt.After(cutoff) {
			kept = append(kept, p)
		}
	}
	w.points = kept

	priceFloat, _ := ap.Price.Float64()

	var score float64
	anomalous := false

	if len(w.points) >= 2 {
		mean, std := meanStd(w.points)
		if std > 0 {
			z := math.Abs(priceFloat-mean) / std
			if z > d.cfg.ZThreshold {
				anomalous = true
				score += z - d.cfg.ZThreshold
			}
		}
	}

	if len(w.points) >= 1 {
		prev := w.points[len(w.points)-1]
		if prev.price != 0 {
			change := math.Abs(priceFloat-prev.price) / math.Abs(prev.price)
			if change > d.cfg.PriceDeviationThreshold {
				anomalous = true
				score += change - d.cfg.PriceDeviationThreshold
			}
		}
	}

	if avgVol := meanVolume(w.points); avgVol > 0 && volume > 0 {
		ratio := volume / avgVol
		if ratio > d.cfg.VolumeSpikeThreshold {
			anomalous = true
			score += ratio - d.cfg.VolumeSpikeThreshold
		}
	}

	if ap.Confidence < d.cfg.ConfidenceThreshold {
		anomalous = true
		score += d.cfg.ConfidenceThreshold - ap.Confidence
	}

	w.points = append(w.points, point{price: priceFloat, volume: volume, observedAt: now})

	return Observation{Anomalous: anomalous, Score: score}
}

func meanStd(points []point) (float64, float64) {
	if len(points) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, p := range points {
		sum += p.price
	}
	mean := sum / float64(len(points))
	var variance float64
	for _, p := range points {
		d := p.price - mean
		variance += d * d
	}
	variance /= float64(len(points))
	return mean, math.Sqrt(variance)
}

func meanVolume(points []point) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := 0.0
	n := 0
	for _, p := range points {
		if p.volume > 0 {
			sum += p.volume
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
