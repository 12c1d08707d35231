package develop

import (
	"fmt"
	"sync"
)

// Pipeline names used by Session.
const (
	LivePipeline     = "live"
	BaselinePipeline = "baseline"
)

// ParamStore persists per-image adjustments across sessions.
type ParamStore interface {
	Get(imageID string) (Params, bool)
	Put(imageID string, p Params) error
}

// SessionOptions configures a Session. Pipeline options are shared by the
// live and baseline pipelines; Name and Deliver are set by the session.
type SessionOptions struct {
	Pipeline Options

	// Store, when set, is consulted on first visit to an image and updated
	// on every parameter change.
	Store ParamStore

	// Initial is the parameter set before any image is opened. Zero means
	// DefaultParams.
	Initial *Params

	// ResultBuffer is the capacity of the Results channel.
	ResultBuffer int
}

// Session is the consumer side of interactive editing. It owns a live
// pipeline for the current parameters and a baseline pipeline for a saved
// reference rendering, tracks which image is selected, and forwards only
// results that are still relevant: the image must be the selected one and
// the request must be the latest issued on its pipeline.
type Session struct {
	live     *Pipeline
	baseline *Pipeline
	store    ParamStore
	logf     func(format string, args ...interface{})

	mu       sync.Mutex
	selected string
	params   Params
	perImage map[string]Params
	saved    *Params
	closed   bool
	// changed is closed and replaced whenever the selection moves or a
	// request is issued, waking deliveries blocked on a full channel.
	changed chan struct{}

	results chan Result
	done    chan struct{}
	once    sync.Once
}

// NewSession creates a session with idle pipelines.
func NewSession(opts SessionOptions) *Session {
	if opts.ResultBuffer <= 0 {
		opts.ResultBuffer = 8
	}
	s := &Session{
		store:    opts.Store,
		params:   DefaultParams(),
		perImage: make(map[string]Params),
		changed:  make(chan struct{}),
		results:  make(chan Result, opts.ResultBuffer),
		done:     make(chan struct{}),
	}
	if opts.Initial != nil {
		s.params = *opts.Initial
	}

	live := opts.Pipeline
	live.Name = LivePipeline
	live.Deliver = s.deliver
	s.live = NewPipeline(live)
	s.logf = s.live.opts.Logf

	base := opts.Pipeline
	base.Name = BaselinePipeline
	base.Deliver = s.deliver
	s.baseline = NewPipeline(base)
	return s
}

// Results delivers accepted results. The channel is closed by Close. A
// result is checked before it enters the channel, not while it waits there,
// so a consumer that falls behind should compare ImageID with Selected.
func (s *Session) Results() <-chan Result {
	return s.results
}

// Live returns the live pipeline.
func (s *Session) Live() *Pipeline { return s.live }

// Baseline returns the baseline pipeline.
func (s *Session) Baseline() *Pipeline { return s.baseline }

// Selected returns the currently selected image.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Params returns the current parameters.
func (s *Session) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetParams replaces the current parameters without rendering. They are
// remembered for the selected image.
func (s *Session) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.params = p
	id := s.selected
	if id != "" {
		s.perImage[id] = p
	}
	s.mu.Unlock()
	s.persist(id, p)
	return nil
}

// ParamsFor returns the parameters remembered for an image.
func (s *Session) ParamsFor(id string) (Params, bool) {
	s.mu.Lock()
	p, ok := s.perImage[id]
	s.mu.Unlock()
	if ok {
		return p, true
	}
	if s.store != nil {
		return s.store.Get(id)
	}
	return Params{}, false
}

// Load selects path and starts decoding it. The parameters switch to those
// remembered for path; an image seen for the first time inherits the
// current ones. The original preview is delivered when decoding finishes,
// followed by a render with the selected parameters.
func (s *Session) Load(path string) (uint64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	if s.selected != "" {
		s.perImage[s.selected] = s.params
	}
	s.selected = path
	if p, ok := s.perImage[path]; ok {
		s.params = p
	} else if s.store != nil {
		if p, ok := s.store.Get(path); ok && p.Validate() == nil {
			s.params = p
		}
	}
	s.perImage[path] = s.params
	s.mu.Unlock()

	id, err := s.live.RequestLoad(path)
	s.notify()
	return id, err
}

// UpdatePreview renders path with params on the live pipeline. Selecting a
// different path this way is allowed and behaves like navigation.
func (s *Session) UpdatePreview(path string, params Params) (uint64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	if s.selected != path && s.selected != "" {
		s.perImage[s.selected] = s.params
	}
	s.selected = path
	s.params = params
	s.perImage[path] = params
	s.mu.Unlock()

	s.persist(path, params)
	id, err := s.live.RequestProcess(path, params)
	s.notify()
	return id, err
}

// SaveBaseline records params as the reference rendering of the selected
// image. The baseline pipeline adopts the live cache, so no decode or lens
// correction runs again, and renders independently of live editing.
func (s *Session) SaveBaseline(params Params) (uint64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	id := s.selected
	if id == "" {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: no image selected", ErrInvalidParams)
	}
	saved := params
	s.saved = &saved
	s.mu.Unlock()

	s.baseline.ShareCache(s.live)
	rid, err := s.baseline.RequestProcess(id, params)
	s.notify()
	return rid, err
}

// SavedBaseline returns the last parameters passed to SaveBaseline.
func (s *Session) SavedBaseline() (Params, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		return Params{}, false
	}
	return *s.saved, true
}

// Accept reports whether r is still relevant: it is for the selected image
// and is the latest request issued on its pipeline.
func (s *Session) Accept(r Result) bool {
	s.mu.Lock()
	selected := s.selected
	s.mu.Unlock()
	if r.ImageID != selected {
		return false
	}
	switch r.Pipeline {
	case LivePipeline:
		return r.RequestID == s.live.LatestID()
	case BaselinePipeline:
		return r.RequestID == s.baseline.LatestID()
	}
	return false
}

// deliver runs on a pipeline worker. While the send is blocked on a full
// channel the result is re-checked on every change, so a result that went
// stale in the meantime is dropped instead of delivered.
func (s *Session) deliver(r Result) {
	for sent := false; !sent; {
		s.mu.Lock()
		changed := s.changed
		s.mu.Unlock()
		if !s.Accept(r) {
			return
		}
		select {
		case <-changed:
			continue
		default:
		}
		select {
		case s.results <- r:
			sent = true
		case <-changed:
		case <-s.done:
			return
		}
	}

	// The original preview is followed by a render with the image's
	// parameters, unless the user has already moved on or asked for
	// something newer.
	if r.Kind != ResultOriginal || r.Pipeline != LivePipeline || r.Err != nil {
		return
	}
	s.mu.Lock()
	selected := s.selected == r.ImageID
	p := s.params
	s.mu.Unlock()
	if !selected {
		return
	}
	_, ok, err := s.live.RequestProcessAfter(r.RequestID, r.ImageID, p)
	if err != nil {
		s.logf("render after load of %s not started: %v", r.ImageID, err)
		return
	}
	if ok {
		s.notify()
	}
}

// notify wakes deliveries waiting on a full Results channel.
func (s *Session) notify() {
	s.mu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

func (s *Session) persist(id string, p Params) {
	if s.store == nil || id == "" {
		return
	}
	if err := s.store.Put(id, p); err != nil {
		s.logf("failed to persist parameters for %s: %v", id, err)
	}
}

// Close stops both pipelines and closes the Results channel.
func (s *Session) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		s.live.Close()
		s.baseline.Close()
		close(s.results)
	})
}
