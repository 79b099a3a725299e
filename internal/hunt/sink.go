package hunt

import (
	"sync"
	"time"

	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
	"github.com/google/uuid"
)

// Sink accumulates the detections of one hunt run
type Sink interface {
	Add(certainty types.Certainty, data types.DetectionData, ctx types.DetectionContext)
}

// Collector is the Sink a hunt creates at the start of RunHunt and whose
// Detections it returns at the end.
type Collector struct {
	hunt string
	now  func() time.Time

	mu         sync.Mutex
	detections []types.Detection
}

// NewCollector returns an empty collector attributing detections to hunt
func NewCollector(hunt string) *Collector {
	return &Collector{hunt: hunt, now: time.Now}
}

// Add records a detection. The hunt's name is added to the context so every
// detection carries at least one attribution entry.
func (c *Collector) Add(certainty types.Certainty, data types.DetectionData, ctx types.DetectionContext) {
	if data == nil {
		logger.Warn("Hunt %s produced a detection without data; dropped", c.hunt)
		return
	}

	ctx = ctx.Clone()
	if !ctx.HasHunt(c.hunt) {
		ctx.Hunts = append(ctx.Hunts, c.hunt)
	}

	d := types.Detection{
		ID:        uuid.New().String(),
		Certainty: certainty,
		Data:      data,
		Context:   ctx,
		Timestamp: c.now(),
	}
	logger.DetectionInfo(c.hunt, certainty.Severity(), data.Identifier())

	c.mu.Lock()
	c.detections = append(c.detections, d)
	c.mu.Unlock()
}

// Len returns the number of detections so far
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.detections)
}

// Detections hands the accumulated detections to the caller and empties
// the collector.
func (c *Collector) Detections() []types.Detection {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.detections
	c.detections = nil
	if out == nil {
		out = []types.Detection{}
	}
	return out
}
