// Package diagnostics keeps the recent render errors and per-module counts
// and publishes them to debugging clients.
package diagnostics

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/spaghettifunk/anima-ar/engine/containers"
	"github.com/spaghettifunk/anima-ar/engine/core"
)

// Record is the JSON form of a core.RenderError.
type Record struct {
	Frame    uint64 `json:"frame"`
	Severity string `json:"severity"`
	Module   string `json:"module"`
	Kind     string `json:"kind"`
	Entity   string `json:"entity,omitempty"`
	Message  string `json:"message"`
}

// Snapshot is what the diagnostics server broadcasts.
type Snapshot struct {
	Frame           uint64         `json:"frame"`
	FPS             float64        `json:"fps"`
	FrameTimeMS     float64        `json:"frame_time_ms"`
	InstanceCounts  map[string]int `json:"instance_counts"`
	DisabledModules []string       `json:"disabled_modules"`
	Records         []Record       `json:"records"`
	Warnings        uint64         `json:"warnings"`
	Fatal           uint64         `json:"fatal"`
}

/**
 * @brief Collects the render errors of a session. Only the last records
 * are kept; the totals count every record ever reported.
 */
type Collector struct {
	mu       sync.Mutex
	history  *containers.RingQueue[Record]
	frame    uint64
	fps      float64
	frameMS  float64
	counts   map[string]int
	disabled map[string]bool
	warnings uint64
	fatal    uint64
}

func NewCollector(historySize int) *Collector {
	return &Collector{
		history:  containers.NewRingQueue[Record](historySize),
		counts:   make(map[string]int),
		disabled: make(map[string]bool),
	}
}

// Report records one error. Fatal records also mark their module disabled.
func (c *Collector) Report(rec *core.RenderError) {
	if rec == nil {
		return
	}
	r := Record{
		Severity: rec.Severity.String(),
		Module:   rec.Module,
		Kind:     string(rec.Kind),
		Message:  rec.Error(),
	}
	if rec.Entity.Valid {
		r.Entity = rec.Entity.UUID.String()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	r.Frame = c.frame
	c.history.Push(r)
	if rec.Severity == core.SeverityFatal {
		c.fatal++
		c.disabled[rec.Module] = true
	} else {
		c.warnings++
	}
}

// EndFrame stores the statistics of a finished frame.
func (c *Collector) EndFrame(frame uint64, counts map[string]int, metrics *core.FrameMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = frame
	c.counts = make(map[string]int, len(counts))
	for k, v := range counts {
		c.counts[k] = v
	}
	if metrics != nil {
		c.fps = metrics.FPS()
		c.frameMS = metrics.FrameTime()
	}
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Frame:          c.frame,
		FPS:            c.fps,
		FrameTimeMS:    c.frameMS,
		InstanceCounts: make(map[string]int, len(c.counts)),
		Records:        c.history.Items(),
		Warnings:       c.warnings,
		Fatal:          c.fatal,
	}
	for k, v := range c.counts {
		s.InstanceCounts[k] = v
	}
	for id := range c.disabled {
		s.DisabledModules = append(s.DisabledModules, id)
	}
	sort.Strings(s.DisabledModules)
	return s
}

// JSON encodes the current snapshot.
func (c *Collector) JSON() ([]byte, error) {
	return json.Marshal(c.Snapshot())
}
