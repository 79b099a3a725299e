// Package scan provides the scan service that schedules hunts and feeds
// their monitoring subscriptions to a watcher.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/digggggmori-pixel/ferret-hunt/internal/hunt"
	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
	"github.com/digggggmori-pixel/ferret-hunt/internal/monitor"
	"github.com/digggggmori-pixel/ferret-hunt/internal/registry"
	"github.com/digggggmori-pixel/ferret-hunt/internal/scope"
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Version is reported in every scan result
const Version = "1.0.0"

// Service manages the scan lifecycle
type Service struct {
	ctx        context.Context
	config     Config
	hunts      []hunt.Hunt
	backend    registry.Backend
	progressCh chan<- Progress
}

// Progress represents scan progress sent via channel
type Progress struct {
	Step     int    `json:"step"`
	Total    int    `json:"total"`
	StepName string `json:"stepName"`
	Percent  int    `json:"percent"`
	Detail   string `json:"detail"`
	Done     bool   `json:"done"`
}

// NewService creates a scan service over the catalog's hunts that pass the
// configured filter. backend is used for host details and monitoring.
func NewService(ctx context.Context, catalog *hunt.Catalog, backend registry.Backend, cfg Config) (*Service, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	hunts := catalog.Filter(cfg.Filter)
	if len(hunts) == 0 {
		return nil, errors.New("no hunts selected")
	}
	return &Service{
		ctx:     ctx,
		config:  cfg,
		hunts:   hunts,
		backend: backend,
	}, nil
}

// WithProgress makes the service report progress on ch. Sends block, so
// the receiver must keep draining until a Progress with Done arrives.
func (s *Service) WithProgress(ch chan<- Progress) *Service {
	s.progressCh = ch
	return s
}

// Hunts returns the hunts this service runs
func (s *Service) Hunts() []hunt.Hunt {
	return append([]hunt.Hunt(nil), s.hunts...)
}

func (s *Service) emitProgress(p Progress) {
	if s.progressCh != nil {
		s.progressCh <- p
	}
}

type huntResult struct {
	report     types.HuntReport
	detections []types.Detection
}

// Execute runs every selected hunt against sc on a bounded worker pool.
// Hunts not yet started when the context is cancelled are skipped and the
// context error is returned with the partial result.
func (s *Service) Execute(sc *scope.Scope) (*types.ScanResult, error) {
	startTime := time.Now()
	logger.Section("Scan " + sc.Name())

	result := &types.ScanResult{
		AgentVersion: Version,
		ScanID:       uuid.New().String(),
		Scope:        sc.Name(),
		ScanTime:     startTime,
		Host:         GetHostInfo(s.backend),
		Detections:   make([]types.Detection, 0),
	}

	total := len(s.hunts)
	results := make([]huntResult, total)
	var (
		mu       sync.Mutex
		finished int
	)

	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(s.config.Workers)
	for i, h := range s.hunts {
		i, h := i, h
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := h.Info().Name
			huntStart := time.Now()
			detections := h.RunHunt(sc)
			results[i] = huntResult{
				report: types.HuntReport{
					Name:       name,
					Detections: len(detections),
					DurationMs: time.Since(huntStart).Milliseconds(),
				},
				detections: detections,
			}

			mu.Lock()
			finished++
			step := finished
			mu.Unlock()
			s.emitProgress(Progress{
				Step:     step,
				Total:    total,
				StepName: name + " complete",
				Percent:  step * 100 / total,
				Detail:   fmt.Sprintf("%d detections", len(detections)),
			})
			return nil
		})
	}
	err := g.Wait()

	for _, r := range results {
		if r.report.Name == "" {
			continue
		}
		result.Hunts = append(result.Hunts, r.report)
		result.Detections = append(result.Detections, r.detections...)
	}
	result.Detections = mergeDetections(result.Detections)

	result.Summary.HuntsRun = len(result.Hunts)
	for _, d := range result.Detections {
		result.Summary.Detections.Add(d.Certainty)
	}
	result.ScanDurationMs = time.Since(startTime).Milliseconds()
	logger.Timing("Scan.Execute", startTime)

	s.emitProgress(Progress{
		Step:     total,
		Total:    total,
		StepName: "Scan complete",
		Percent:  100,
		Detail:   fmt.Sprintf("%d detections, %.1fs elapsed", len(result.Detections), time.Since(startTime).Seconds()),
		Done:     true,
	})

	if err != nil {
		return result, fmt.Errorf("scan interrupted: %w", err)
	}
	return result, nil
}

// mergeDetections folds detections of the same artifact reported by several
// hunts into one, keeping the highest certainty, the union of attributions
// and the earliest evidence time.
func mergeDetections(detections []types.Detection) []types.Detection {
	index := make(map[string]int)
	out := make([]types.Detection, 0, len(detections))

	for _, d := range detections {
		key := mergeKey(d.Data)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			d.Context = d.Context.Clone()
			out = append(out, d)
			continue
		}

		merged := &out[i]
		if d.Certainty > merged.Certainty {
			merged.Certainty = d.Certainty
		}
		merged.Context.Hunts = union(merged.Context.Hunts, d.Context.Hunts)
		merged.Context.Techniques = union(merged.Context.Techniques, d.Context.Techniques)
		if first := d.Context.FirstEvidence; first != nil {
			if merged.Context.FirstEvidence == nil || first.Before(*merged.Context.FirstEvidence) {
				t := *first
				merged.Context.FirstEvidence = &t
			}
		}
	}
	return out
}

func mergeKey(data types.DetectionData) string {
	key := string(data.Kind()) + "|" + strings.ToLower(data.Identifier())
	if d, ok := data.(types.RegistryDetectionData); ok {
		// The WOW64 view of a key renders the same path
		key += "|" + d.Entry.View
	}
	return key
}

func union(a, b []string) []string {
	for _, s := range b {
		found := false
		for _, have := range a {
			if have == s {
				found = true
				break
			}
		}
		if !found {
			a = append(a, s)
		}
	}
	return a
}

// Monitor subscribes every hunt's monitoring events and re-runs the hunts
// owning a subscription whenever it fires. Each subscribing hunt runs once
// up front as a baseline; only detections absent from the baseline and not
// yet sent during this call are sent to out. It blocks until the service
// context is cancelled.
func (s *Service) Monitor(sc *scope.Scope, out chan<- types.Detection) error {
	owners := make(map[string][]hunt.Hunt)
	var (
		events      []monitor.Event
		subscribers []hunt.Hunt
	)
	for _, h := range s.hunts {
		hevents := h.GetMonitoringEvents()
		if len(hevents) > 0 {
			subscribers = append(subscribers, h)
		}
		for _, e := range hevents {
			key := strings.ToLower(e.String())
			if _, dup := owners[key]; !dup {
				events = append(events, e)
			}
			owners[key] = append(owners[key], h)
		}
	}
	if len(events) == 0 {
		return errors.New("no monitoring subscriptions")
	}

	ctx := s.ctx
	sent := make(map[string]struct{})
	baseline := 0
	for _, h := range subscribers {
		for _, d := range h.RunHunt(sc) {
			sent[detectionKey(d)] = struct{}{}
			baseline++
		}
	}
	logger.Info("Monitoring baseline: %d existing detections", baseline)

	w, err := monitor.NewWatcher(monitor.WatcherConfig{
		Backend:      s.backend,
		PollInterval: s.config.PollInterval,
		Debounce:     s.config.Debounce,
		OnTrigger: func(t monitor.Trigger) {
			logger.Info("Change detected: %s (%s)", t.Event, t.Path)
			for _, h := range owners[strings.ToLower(t.Event.String())] {
				for _, d := range h.RunHunt(sc) {
					key := detectionKey(d)
					if _, dup := sent[key]; dup {
						continue
					}
					sent[key] = struct{}{}
					select {
					case out <- d:
					case <-ctx.Done():
						return
					}
				}
			}
		},
	})
	if err != nil {
		return err
	}
	if err := w.Subscribe(events...); err != nil {
		return err
	}

	names := make([]string, 0, len(s.hunts))
	for _, h := range s.hunts {
		names = append(names, h.Info().Name)
	}
	sort.Strings(names)
	logger.Info("Monitoring %d subscriptions for %s", len(events), strings.Join(names, ", "))

	return w.Run(ctx)
}

// detectionKey identifies a finding independently of its ID and timestamp
func detectionKey(d types.Detection) string {
	return fmt.Sprintf("%s|%+v|%s", d.Data.Kind(), d.Data, d.Certainty)
}
