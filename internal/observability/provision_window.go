package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Stage names reported by ProvisionWindow.Snapshot.
const (
	StageDispatch       = "dispatch"
	StageSign           = "sign"
	StageProvisionTotal = "provision_total"
)

// Attempt is one provisioning request. Dispatch and Sign are zero when the
// request failed before reaching that step.
type Attempt struct {
	Outcome     string
	Dispatch    time.Duration
	Sign        time.Duration
	Total       time.Duration
	Compensated bool
}

type StageStats struct {
	Stage   string  `json:"stage"`
	Samples int     `json:"samples"`
	AvgMS   float64 `json:"avg_ms"`
	P50MS   float64 `json:"p50_ms"`
	P95MS   float64 `json:"p95_ms"`
	MaxMS   float64 `json:"max_ms"`
}

type WindowSnapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Attempts    int            `json:"attempts"`
	Outcomes    map[string]int `json:"outcomes"`
	Compensated int            `json:"compensated"`
	Stages      []StageStats   `json:"stages"`
}

// ProvisionWindow keeps the most recent provisioning attempts.
type ProvisionWindow struct {
	mu       sync.Mutex
	attempts []Attempt
	next     int
	full     bool
}

func NewProvisionWindow(size int) *ProvisionWindow {
	if size <= 0 {
		size = 256
	}
	return &ProvisionWindow{attempts: make([]Attempt, size)}
}

func (w *ProvisionWindow) Record(a Attempt) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[w.next] = a
	w.next = (w.next + 1) % len(w.attempts)
	if w.next == 0 {
		w.full = true
	}
}

func (w *ProvisionWindow) Snapshot() WindowSnapshot {
	snap := WindowSnapshot{
		GeneratedAt: time.Now().UTC(),
		Outcomes:    map[string]int{},
		Stages:      []StageStats{},
	}
	if w == nil {
		return snap
	}

	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.attempts)
	}
	window := append([]Attempt(nil), w.attempts[:n]...)
	w.mu.Unlock()

	var dispatch, sign, total []time.Duration
	for _, a := range window {
		snap.Outcomes[a.Outcome]++
		if a.Compensated {
			snap.Compensated++
		}
		if a.Dispatch > 0 {
			dispatch = append(dispatch, a.Dispatch)
		}
		if a.Sign > 0 {
			sign = append(sign, a.Sign)
		}
		total = append(total, a.Total)
	}
	snap.Attempts = len(window)

	for _, st := range []struct {
		name    string
		samples []time.Duration
	}{
		{StageDispatch, dispatch},
		{StageSign, sign},
		{StageProvisionTotal, total},
	} {
		if len(st.samples) > 0 {
			snap.Stages = append(snap.Stages, stageStats(st.name, st.samples))
		}
	}
	return snap
}

func stageStats(name string, samples []time.Duration) StageStats {
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	return StageStats{
		Stage:   name,
		Samples: len(samples),
		AvgMS:   millis(sum / time.Duration(len(samples))),
		P50MS:   millis(nearestRank(samples, 0.50)),
		P95MS:   millis(nearestRank(samples, 0.95)),
		MaxMS:   millis(samples[len(samples)-1]),
	}
}

// nearestRank expects sorted, non-empty samples.
func nearestRank(sorted []time.Duration, q float64) time.Duration {
	rank := int(math.Ceil(q * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func millis(d time.Duration) float64 {
	return math.Round(float64(d.Microseconds())/10) / 100
}
