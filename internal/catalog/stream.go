package catalog

import (
	"log/slog"
	"sync"
)

// Stream is a live catalog fed by a document stream. Runs are appended as
// start documents arrive and mutated in place while events stream in.
//
// HandleDocument must be called from a single goroutine (the consumer
// thread); reads are safe from that same goroutine. The mutex only guards
// against the transport bridge observing Len concurrently.
type Stream struct {
	mu    sync.RWMutex
	runs  []*Run
	byUID map[string]*Run
	// descriptor uid -> owning run, for event routing
	byDescriptor map[string]*Run
}

// NewStream returns an empty live catalog.
func NewStream() *Stream {
	return &Stream{
		byUID:        map[string]*Run{},
		byDescriptor: map[string]*Run{},
	}
}

func (s *Stream) Kind() Kind { return KindStream }

func (s *Stream) Columns() []string { return Columns }

func (s *Stream) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs), nil
}

func (s *Stream) Get(i int) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.runs) {
		return nil, ErrOutOfRange
	}
	return s.runs[i], nil
}

func (s *Stream) UID(i int) (string, error) {
	run, err := s.Get(i)
	if err != nil {
		return "", err
	}
	return run.UID(), nil
}

func (s *Stream) GetByUID(uid string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if run, ok := s.byUID[uid]; ok {
		return run, nil
	}
	return nil, ErrOutOfRange
}

func (s *Stream) ItemsSlice(start, stop int) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if start < 0 {
		start = 0
	}
	if stop >= len(s.runs) {
		stop = len(s.runs) - 1
	}
	if start > stop {
		return nil, nil
	}
	items := make([]Item, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		items = append(items, Item{UID: s.runs[i].UID(), Run: s.runs[i]})
	}
	return items, nil
}

// HandleDocument routes one transport document into the catalog. A start
// document appends a new run; descriptor/event/stop documents are routed to
// the owning run. Documents for unknown runs are dropped, which tolerates
// joining a stream mid-run.
func (s *Stream) HandleDocument(name string, doc map[string]any) {
	switch name {
	case "start":
		run := NewRun(doc)
		s.mu.Lock()
		s.runs = append(s.runs, run)
		s.byUID[run.UID()] = run
		s.mu.Unlock()
	case "descriptor":
		runUID, _ := doc["run_start"].(string)
		run, ok := s.byUID[runUID]
		if !ok {
			slog.Debug("catalog: descriptor for unknown run", "run", runUID)
			return
		}
		if uid, ok := doc["uid"].(string); ok {
			s.byDescriptor[uid] = run
		}
		run.Process(name, doc)
	case "event", "event_page":
		descUID, _ := doc["descriptor"].(string)
		run, ok := s.byDescriptor[descUID]
		if !ok {
			return
		}
		run.Process(name, doc)
	case "stop":
		runUID, _ := doc["run_start"].(string)
		run, ok := s.byUID[runUID]
		if !ok {
			return
		}
		run.Process(name, doc)
	}
}
