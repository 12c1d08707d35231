package develop

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ironsheep/raw-alchemy/internal/histogram"
	"github.com/ironsheep/raw-alchemy/internal/imaging"
	"github.com/ironsheep/raw-alchemy/internal/lens"
	"github.com/ironsheep/raw-alchemy/internal/metering"
)

// Pipeline defaults.
const (
	DefaultPreviewMaxDim = 2048
	DefaultIdleTimeout   = 2 * time.Second
)

// ErrClosed is reported for requests issued after Close.
var ErrClosed = errors.New("develop: pipeline closed")

// State is the lifecycle position of the pipeline's open image.
type State int

const (
	Unloaded State = iota
	Loading
	LoadedBase
	Processing
	Ready
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case LoadedBase:
		return "loaded"
	case Processing:
		return "processing"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// RequestKind distinguishes load-only requests from full processing.
type RequestKind int

const (
	KindLoad RequestKind = iota
	KindProcess
)

// Request is one unit of pipeline work. The Params inside are a private
// copy and never change after the request is issued.
type Request struct {
	ID      uint64
	Kind    RequestKind
	ImageID string
	Params  Params
}

// ResultKind distinguishes the fast post-decode preview from a full
// parameter render.
type ResultKind int

const (
	ResultOriginal ResultKind = iota
	ResultCurrent
)

func (k ResultKind) String() string {
	if k == ResultOriginal {
		return "original"
	}
	return "current"
}

// Result is emitted by the worker for every executed request.
type Result struct {
	Pipeline  string
	Kind      ResultKind
	RequestID uint64
	ImageID   string

	// Image is display-referred, values in [0,1].
	Image *imaging.Buffer

	Gain      float64
	Histogram *histogram.Histogram
	Outcome   *Outcome
	Exif      imaging.Exif

	// Err is set when the request failed; Image is nil then.
	Err error
}

// Options configures a Pipeline.
type Options struct {
	// Name labels results, e.g. "live" or "baseline".
	Name string

	Decoder   Decoder
	Corrector lens.Corrector
	LUTs      LUTLoader

	// PreviewMaxDim bounds the long side of the cached preview buffer.
	PreviewMaxDim int

	// IdleTimeout is how long the worker waits for work before exiting.
	IdleTimeout time.Duration

	HistogramBins   int
	HistogramStride int

	// Deliver receives every result, on the worker goroutine. It must not
	// block for long.
	Deliver func(Result)

	Logf    func(format string, args ...interface{})
	Observe func(Stage)
}

// Pipeline runs load and process requests for one image at a time on a
// background worker, caching the decoded and lens-corrected buffers.
//
// At most one request is pending: a new request replaces any request that
// has not started yet. The worker runs each request it picks up to
// completion and exits after IdleTimeout without work; the next request
// starts it again.
type Pipeline struct {
	opts  Options
	chain *Chain

	// mu guards the pending slot and worker bookkeeping only.
	mu      sync.Mutex
	pending *Request
	lastID  uint64
	running bool
	closed  bool
	wake    chan struct{}
	quit    chan struct{}
	wg      sync.WaitGroup

	// cacheMu guards entry and state. Buffers inside entry are immutable.
	cacheMu sync.Mutex
	entry   CacheEntry
	state   State

	closeOnce sync.Once
}

// NewPipeline creates an idle pipeline. No goroutine runs until the first
// request.
func NewPipeline(opts Options) *Pipeline {
	if opts.Decoder == nil {
		opts.Decoder = imaging.FileDecoder{}
	}
	if opts.PreviewMaxDim == 0 {
		opts.PreviewMaxDim = DefaultPreviewMaxDim
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.HistogramBins <= 0 {
		opts.HistogramBins = histogram.DefaultBins
	}
	if opts.HistogramStride <= 0 {
		opts.HistogramStride = histogram.DefaultStride
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}
	return &Pipeline{
		opts: opts,
		chain: &Chain{
			Corrector: opts.Corrector,
			LUTs:      opts.LUTs,
			Logf:      opts.Logf,
			Observe:   opts.Observe,
		},
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

// Name returns the pipeline's label.
func (p *Pipeline) Name() string { return p.opts.Name }

// RequestLoad issues a load-only request for path and returns its id.
func (p *Pipeline) RequestLoad(path string) (uint64, error) {
	return p.submit(Request{Kind: KindLoad, ImageID: path})
}

// RequestProcess issues a processing request and returns its id. Invalid
// params are rejected here, before anything is queued.
func (p *Pipeline) RequestProcess(path string, params Params) (uint64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	return p.submit(Request{Kind: KindProcess, ImageID: path, Params: params})
}

// RequestProcessAfter issues a processing request only if after is still
// the latest request id. The check and the submission happen under one
// lock, so a request issued concurrently is never replaced. ok is false
// when a newer request exists.
func (p *Pipeline) RequestProcessAfter(after uint64, path string, params Params) (id uint64, ok bool, err error) {
	if err := params.Validate(); err != nil {
		return 0, false, err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, false, ErrClosed
	}
	if p.lastID != after {
		p.mu.Unlock()
		return 0, false, nil
	}
	id = p.submitLocked(Request{Kind: KindProcess, ImageID: path, Params: params})
	p.mu.Unlock()
	p.signal()
	return id, true, nil
}

// LatestID returns the id of the most recently issued request.
func (p *Pipeline) LatestID() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastID
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	return p.state
}

// Running reports whether the worker goroutine is alive.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Snapshot returns a copy of the cache entry. The buffers are shared by
// reference and must not be modified.
func (p *Pipeline) Snapshot() CacheEntry {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	return p.entry
}

// ShareCache adopts from's cache entry so this pipeline can process the same
// image without decoding or correcting it again.
func (p *Pipeline) ShareCache(from *Pipeline) {
	snap := from.Snapshot()
	p.cacheMu.Lock()
	p.entry = snap
	if snap.Loaded() && p.state == Unloaded {
		p.state = LoadedBase
	}
	p.cacheMu.Unlock()
}

// Close stops the worker and waits for it to exit. A request already
// executing finishes first; a pending one is dropped.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.pending = nil
		p.mu.Unlock()
		close(p.quit)
		p.wg.Wait()
	})
}

func (p *Pipeline) submit(req Request) (uint64, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrClosed
	}
	id := p.submitLocked(req)
	p.mu.Unlock()
	p.signal()
	return id, nil
}

// submitLocked replaces the pending request and starts the worker if
// needed. p.mu must be held.
func (p *Pipeline) submitLocked(req Request) uint64 {
	p.lastID++
	req.ID = p.lastID
	p.pending = &req
	if !p.running {
		p.running = true
		p.wg.Add(1)
		go p.run()
	}
	return req.ID
}

func (p *Pipeline) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pipeline) take() (Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return Request{}, false
	}
	req := *p.pending
	p.pending = nil
	return req, true
}

func (p *Pipeline) run() {
	defer p.wg.Done()

	idle := time.NewTimer(p.opts.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-p.quit:
			p.stopped()
			return
		default:
		}

		if req, ok := p.take(); ok {
			p.execute(req)
			continue
		}

		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(p.opts.IdleTimeout)

		select {
		case <-p.wake:
		case <-p.quit:
			p.stopped()
			return
		case <-idle.C:
			p.mu.Lock()
			if p.pending == nil {
				p.running = false
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
		}
	}
}

func (p *Pipeline) stopped() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Pipeline) setState(s State) {
	p.cacheMu.Lock()
	p.state = s
	p.cacheMu.Unlock()
}

func (p *Pipeline) deliver(r Result) {
	r.Pipeline = p.opts.Name
	if p.opts.Deliver != nil {
		p.opts.Deliver(r)
	}
}

func (p *Pipeline) execute(req Request) {
	switch req.Kind {
	case KindLoad:
		p.load(req)
	case KindProcess:
		p.process(req)
	}
}

// ensureLoaded returns the cache entry for id, decoding it when the cache
// holds a different image or none.
func (p *Pipeline) ensureLoaded(id string) (CacheEntry, error) {
	p.cacheMu.Lock()
	if p.entry.Holds(id) {
		e := p.entry
		p.cacheMu.Unlock()
		return e, nil
	}
	p.entry.Clear()
	p.state = Loading
	p.cacheMu.Unlock()

	dec, err := p.opts.Decoder.Decode(id, imaging.DecodeOptions{HalfSize: true})
	if err == nil && (dec == nil || dec.Buffer.Validate() != nil) {
		err = fmt.Errorf("%w: decoder returned no usable buffer", imaging.ErrDecode)
	}
	if err != nil {
		p.setState(Unloaded)
		return CacheEntry{}, err
	}
	dec.Buffer = imaging.FitBuffer(dec.Buffer, p.opts.PreviewMaxDim)

	p.cacheMu.Lock()
	p.entry.Update(id, dec)
	p.state = LoadedBase
	e := p.entry
	p.cacheMu.Unlock()
	return e, nil
}

// corrected returns the lens-corrected buffer for key, running the
// corrector only when the cached one was produced under a different key.
func (p *Pipeline) corrected(e CacheEntry, key LensKey) (*imaging.Buffer, error) {
	if buf, ok := e.CorrectedFor(key); ok {
		return buf, nil
	}
	buf, err := p.chain.Correct(e.Decoded, e.Exif, key)
	if err != nil {
		return nil, err
	}

	p.cacheMu.Lock()
	if p.entry.Holds(e.ImageID) && p.entry.Decoded == e.Decoded {
		p.entry.SetCorrected(key, buf)
	}
	p.cacheMu.Unlock()
	return buf, nil
}

func (p *Pipeline) fail(req Request, kind ResultKind, err error) {
	p.opts.Logf("%s request %d for %s failed: %v", p.opts.Name, req.ID, req.ImageID, err)
	p.deliver(Result{Kind: kind, RequestID: req.ID, ImageID: req.ImageID, Err: err})
}

// load decodes the image (or reuses the cache for the same path) and emits
// the original preview: lens correction, matrix metering and a mild
// saturation and contrast boost.
func (p *Pipeline) load(req Request) {
	e, err := p.ensureLoaded(req.ImageID)
	if err != nil {
		p.fail(req, ResultOriginal, err)
		return
	}

	corrected, err := p.corrected(e, DefaultParams().LensKey())
	if err != nil {
		p.fail(req, ResultOriginal, err)
		return
	}

	recipe := Params{
		ExposureMode: ExposureAuto,
		Metering:     metering.Matrix,
		Saturation:   1.25,
		Contrast:     1.1,
	}
	buf := corrected.Clone()
	chain := &Chain{Logf: p.opts.Logf}
	out, err := chain.Develop(buf, recipe)
	if err == nil {
		err = chain.Render(buf, out)
	}
	if err != nil {
		p.fail(req, ResultOriginal, err)
		return
	}

	p.deliver(Result{
		Kind:      ResultOriginal,
		RequestID: req.ID,
		ImageID:   req.ImageID,
		Image:     buf,
		Gain:      out.Gain,
		Histogram: histogram.Compute(buf, p.opts.HistogramBins, p.opts.HistogramStride),
		Outcome:   out,
		Exif:      e.Exif,
	})
}

// process runs the full chain with req.Params on a copy of the corrected
// buffer.
func (p *Pipeline) process(req Request) {
	e, err := p.ensureLoaded(req.ImageID)
	if err != nil {
		p.fail(req, ResultCurrent, err)
		return
	}
	p.setState(Processing)

	corrected, err := p.corrected(e, req.Params.LensKey())
	if err != nil {
		p.setState(LoadedBase)
		p.fail(req, ResultCurrent, err)
		return
	}

	buf := corrected.Clone()
	out, err := p.chain.Develop(buf, req.Params)
	if err == nil {
		err = p.chain.Render(buf, out)
	}
	if err != nil {
		p.setState(LoadedBase)
		p.fail(req, ResultCurrent, err)
		return
	}
	if req.Params.LensKey().Enabled && p.opts.Corrector != nil {
		out.Stages = append([]Stage{StageLens}, out.Stages...)
	}
	for _, w := range out.Warnings {
		p.opts.Logf("%s request %d: %s", p.opts.Name, req.ID, w)
	}

	p.setState(Ready)
	p.deliver(Result{
		Kind:      ResultCurrent,
		RequestID: req.ID,
		ImageID:   req.ImageID,
		Image:     buf,
		Gain:      out.Gain,
		Histogram: histogram.Compute(buf, p.opts.HistogramBins, p.opts.HistogramStride),
		Outcome:   out,
		Exif:      e.Exif,
	})
}
