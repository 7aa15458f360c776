package assetq

import "sync"

// Asset is a unit of deferred loading work with two phases.
//
// Load runs on the Loader's worker goroutine and performs the slow part:
// reading a file, decoding an image, compiling a shader. It stores its
// result into the asset's payload, or leaves the payload empty on failure.
// Load must not touch state shared with the owning goroutine.
//
// Finalize runs on the owning goroutine and consumes the payload into the
// final usable resource. It must tolerate an empty payload (a failed
// Load) without panicking, and it runs exactly once for every asset that
// completes the load phase. Its return value reports overall success and
// is afterwards available through IsValid.
//
// Implementations embed [State] for the name, flags, and callback
// plumbing, and implement only Load and Finalize:
//
//	type Texture struct {
//	    assetq.State
//	    pixels *image.RGBA // payload: written by Load, consumed by Finalize
//	}
//
// The payload handoff between the two phases is synchronized by the
// Loader; implementations never need their own locking for it.
type Asset interface {
	// Name returns the asset's display name, usually its file name or
	// URL. It must be non-empty before the asset is submitted.
	Name() string

	// Load performs the I/O phase. Worker goroutine only.
	Load()

	// Finalize performs the finalize phase and reports success.
	// Owning goroutine only. Implementations finish by calling
	// [State.FinishFinalize], which runs the registered callbacks and
	// publishes the finalized flag.
	Finalize() bool

	// IsValid reports overall success. Meaningful only once
	// IsFinalized returns true.
	IsValid() bool

	// IsFinalized reports whether Finalize has completed, successfully
	// or not.
	IsFinalized() bool

	// AddFinalizeCallback registers fn to run as part of Finalize,
	// after the payload has been consumed. Callbacks run in
	// registration order. Returns false, without registering anything,
	// if the asset is already finalized or finalization has begun.
	AddFinalizeCallback(fn func(Asset)) bool
}

// LoadNow runs both phases of a back to back on the calling goroutine,
// bypassing any Loader. It returns the Finalize result.
//
// Finalize runs even when the load phase failed, preserving the contract
// that Finalize is invoked exactly once and always sees a possibly-empty
// payload. Use LoadNow for assets that must be available immediately,
// such as a fallback texture needed before the first frame.
func LoadNow(a Asset) bool {
	a.Load()
	return a.Finalize()
}

// State holds the bookkeeping every Asset needs: the display name, the
// finalized and valid flags, and the ordered finalize-callback list.
// Concrete assets embed State by value and call [State.FinishFinalize]
// at the end of their Finalize method.
//
// The zero State is not usable; construct with [NewState].
// State must not be copied after first use.
type State struct {
	name string

	mu        sync.Mutex
	callbacks []func(Asset)
	draining  bool // callbacks moved out, registration closed
	finalized bool
	valid     bool
}

// NewState returns asset state carrying the given display name.
func NewState(name string) State {
	return State{name: name}
}

// Name returns the asset's display name.
func (s *State) Name() string { return s.name }

// IsFinalized reports whether FinishFinalize has completed.
func (s *State) IsFinalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

// IsValid reports the success recorded by FinishFinalize.
// Meaningful only once IsFinalized returns true.
func (s *State) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

// AddFinalizeCallback registers fn to run when the asset is finalized.
// Callbacks run in registration order, after the finalize phase has
// consumed the payload but before IsFinalized becomes true.
//
// Returns false, and registers nothing, once finalization has begun:
// a registration racing the finalize drain either lands before the
// callback list is drained (and runs) or is rejected.
func (s *State) AddFinalizeCallback(fn func(Asset)) bool {
	if fn == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized || s.draining {
		return false
	}
	s.callbacks = append(s.callbacks, fn)
	return true
}

// FinishFinalize completes the finalize phase for owner: it records the
// validity, moves the registered callbacks out of the asset, invokes
// them in registration order, and only then publishes the finalized
// flag. It returns valid, so a Finalize implementation typically ends
// with:
//
//	return t.FinishFinalize(t, err == nil)
//
// Callbacks run whether or not the finalize succeeded; they can inspect
// owner.IsValid. New registrations are rejected from the moment the
// callback list is moved out. Owning goroutine only.
func (s *State) FinishFinalize(owner Asset, valid bool) bool {
	s.mu.Lock()
	cbs := s.callbacks
	s.callbacks = nil
	s.draining = true
	s.valid = valid
	s.mu.Unlock()

	for _, cb := range cbs {
		cb(owner)
	}

	s.mu.Lock()
	s.finalized = true
	s.mu.Unlock()
	return valid
}

// FuncAsset adapts a pair of closures into an [Asset]. It is a
// convenient way to run one-off work through a Loader without declaring
// a new type:
//
//	a := assetq.NewFunc("level1.dat",
//	    func() (any, error) { return os.ReadFile("level1.dat") },
//	    func(payload any) bool {
//	        data, ok := payload.([]byte)
//	        if !ok {
//	            return false
//	        }
//	        level.Parse(data)
//	        return true
//	    })
//	loader.Submit(a)
type FuncAsset struct {
	State

	load     func() (any, error)
	finalize func(payload any) bool

	payload any
}

// NewFunc builds a FuncAsset from a load and a finalize closure.
//
// load runs on the worker goroutine; its result becomes the payload.
// A returned error is logged at Warn and leaves the payload empty.
// finalize runs on the owning goroutine and receives the payload, which
// is nil when load failed; it must handle that case. Either closure may
// be nil, in which case the corresponding phase is a no-op (a nil
// finalize reports success only for a non-nil payload).
func NewFunc(name string, load func() (any, error), finalize func(payload any) bool) *FuncAsset {
	return &FuncAsset{
		State:    NewState(name),
		load:     load,
		finalize: finalize,
	}
}

// Load runs the load closure and stores its result as the payload.
func (f *FuncAsset) Load() {
	if f.load == nil {
		return
	}
	p, err := f.load()
	if err != nil {
		Logger().Warn("asset load failed", "asset", f.Name(), "error", err)
		return
	}
	f.payload = p
}

// Finalize consumes the payload through the finalize closure.
func (f *FuncAsset) Finalize() bool {
	p := f.payload
	f.payload = nil

	ok := p != nil
	if f.finalize != nil {
		ok = f.finalize(p)
	}
	return f.FinishFinalize(f, ok)
}
