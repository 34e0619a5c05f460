package cmd

import (
	"fmt"
	"sync"

	"db-migrate/internal/engine"

	"github.com/gosuri/uiprogress"
)

// barSink draws one progress bar per table.
type barSink struct {
	mu       sync.Mutex
	progress *uiprogress.Progress
	bars     map[string]*uiprogress.Bar
	status   sync.Map // table -> trailing status text
}

func newBarSink() *barSink {
	p := uiprogress.New()
	p.Start()
	return &barSink{progress: p, bars: make(map[string]*uiprogress.Bar)}
}

func (s *barSink) OnTableStart(table string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// an empty table still gets a bar; uiprogress cannot draw a zero total
	bar := s.progress.AddBar(max(total, 1)).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return fmt.Sprintf("%-20s", table)
	})
	bar.AppendFunc(func(b *uiprogress.Bar) string {
		if v, ok := s.status.Load(table); ok {
			return v.(string)
		}
		return ""
	})
	s.bars[table] = bar
}

func (s *barSink) OnRowProcessed(table string, index, total int) {
	s.mu.Lock()
	bar := s.bars[table]
	s.mu.Unlock()
	if bar != nil {
		bar.Set(index)
	}
}

func (s *barSink) OnTableDone(r *engine.TableReport) {
	s.mu.Lock()
	bar := s.bars[r.Table]
	s.mu.Unlock()
	if bar == nil {
		return
	}
	if r.Total == 0 && r.Status == engine.StatusDone {
		bar.Set(1)
	}
	status := r.Status
	if r.Failed > 0 {
		status += fmt.Sprintf(" (%d failed)", r.Failed)
	}
	s.status.Store(r.Table, status)
}

func (s *barSink) Stop() {
	s.progress.Stop()
}
