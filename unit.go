package patch

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/engine"
	"pipelined.dev/patch/log"
	"pipelined.dev/patch/mutable"
)

// Unit is the base of every generator, modulator, processor and mixer.
// It owns native primitives, publishes exactly one outlet and drives the
// create/connect/update/disconnect lifecycle. Concrete units embed Unit
// and allocate their primitives in Init between Begin and Commit.
//
// Primitives are allocated exactly once per live period: updates while
// live mutate them in place, they never reallocate.
type Unit struct {
	mutable.Context
	label string
	kind  Kind
	log   *logrus.Logger

	mu       sync.Mutex
	state    State
	eng      engine.Engine
	owned    []engine.Node
	links    []link
	params   map[string]*automation.Param
	lastErr  error
	watchers map[int]func(name string, value float64)
	nextID   int

	outlet Outlet
}

// link is a connection created by the unit during initialization,
// severed in reverse order on teardown.
type link struct {
	from, to engine.Node
}

// NewUnit returns unit base with provided label and kind.
func NewUnit(label string, kind Kind) Unit {
	return Unit{
		Context: mutable.New(),
		label:   label,
		kind:    kind,
		log:     log.Silent(),
	}
}

// SetLogger sets unit logger. Silent by default.
func (u *Unit) SetLogger(l *logrus.Logger) {
	u.log = l
}

// Label returns unit label.
func (u *Unit) Label() string {
	return u.label
}

// Kind returns unit category.
func (u *Unit) Kind() Kind {
	return u.kind
}

// State returns unit lifecycle state.
func (u *Unit) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Active reports whether the unit is live and healthy. No-upstream and
// acquisition failures are reported here instead of being raised.
func (u *Unit) Active() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state == Live && u.lastErr == nil
}

// LastError returns the retained error of the last failed operation.
func (u *Unit) LastError() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastErr
}

// Outlet returns the unit's published output reference.
func (u *Unit) Outlet() *Outlet {
	return &u.outlet
}

// Begin guards initialization. It returns false when there is nothing to
// do: the engine has not arrived yet. Initializing a live unit is an
// error. On success the unit holds the engine and the concrete unit must
// proceed to allocate primitives and Commit.
func (u *Unit) Begin(e engine.Engine) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if e == nil {
		// rendering context not yet available, not an error
		return false, nil
	}
	if u.state == Live {
		return false, ErrLive
	}
	u.eng = e
	u.lastErr = nil
	u.owned = nil
	u.links = nil
	u.params = make(map[string]*automation.Param)
	return true, nil
}

// Engine returns the engine the unit was initialized with.
func (u *Unit) Engine() engine.Engine {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.eng
}

// Own registers primitives created by the unit. They are released in
// reverse order on teardown.
func (u *Unit) Own(nodes ...engine.Node) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.owned = append(u.owned, nodes...)
}

// Link connects two owned primitives and records the edge for teardown.
func (u *Unit) Link(from, to engine.Node) error {
	if err := from.Connect(to); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.links = append(u.links, link{from: from, to: to})
	return nil
}

// Expose registers a named automation param.
func (u *Unit) Expose(name string, p *automation.Param) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.params[name] = p
}

// Commit marks the unit live and publishes its handle. It must be the
// last step of initialization: the handle is never observable in a
// partially-wired state.
func (u *Unit) Commit(output engine.Node, gain engine.Gain) {
	u.mu.Lock()
	u.state = Live
	eng := u.eng
	u.mu.Unlock()
	u.log.Debug(u.label, " is live")
	u.outlet.Publish(&Handle{
		Output: output,
		Gain:   gain,
		Engine: eng,
		Label:  u.label,
		Kind:   u.kind,
	})
}

// Fail unwinds a partially-initialized unit and retains the error. The
// unit returns to Uninitialized so the caller may retry explicitly.
func (u *Unit) Fail(err error) error {
	u.mu.Lock()
	for i := len(u.links) - 1; i >= 0; i-- {
		u.links[i].from.Disconnect(u.links[i].to)
	}
	u.links = nil
	u.owned = nil
	u.params = nil
	u.state = Uninitialized
	u.lastErr = err
	u.mu.Unlock()
	u.log.Info(u.label, " init failed: ", err)
	return err
}

// Teardown severs every edge this unit created, in reverse order, then
// nulls the published handle. Safe to call on a partially-initialized
// unit and idempotent.
func (u *Unit) Teardown() {
	u.mu.Lock()
	if u.state == TornDown {
		u.mu.Unlock()
		return
	}
	for i := len(u.links) - 1; i >= 0; i-- {
		u.links[i].from.Disconnect(u.links[i].to)
	}
	u.links = nil
	u.owned = nil
	u.params = nil
	u.state = TornDown
	u.mu.Unlock()
	u.log.Debug(u.label, " torn down")
	u.outlet.Publish(nil)
}

// Set schedules an immediate parameter change. Valid only while live.
func (u *Unit) Set(name string, value float64) error {
	p, err := u.param(name)
	if err != nil {
		return err
	}
	p.SetImmediate(value)
	u.Changed(name, value)
	return nil
}

// Ramp schedules a linear parameter ramp over duration in seconds.
func (u *Unit) Ramp(name string, value, duration float64) error {
	p, err := u.param(name)
	if err != nil {
		return err
	}
	p.Ramp(value, duration)
	u.Changed(name, value)
	return nil
}

// SetMutation returns a mutation applying Set at a safe point.
func (u *Unit) SetMutation(name string, value float64) mutable.Mutation {
	return u.Context.Mutate(func() error {
		return u.Set(name, value)
	})
}

// Param returns the named automation param, nil if not exposed or the
// unit is not live. Nil params swallow all automation calls, so holding
// one across upstream teardown is safe.
func (u *Unit) Param(name string) *automation.Param {
	p, err := u.param(name)
	if err != nil {
		return nil
	}
	return p
}

// Value returns effective value of the named parameter.
func (u *Unit) Value(name string) (float64, bool) {
	p, err := u.param(name)
	if err != nil {
		return 0, false
	}
	return p.Value(), true
}

// ParamNames returns sorted names of exposed automation params.
func (u *Unit) ParamNames() []string {
	u.mu.Lock()
	names := make([]string, 0, len(u.params))
	for name := range u.params {
		names = append(names, name)
	}
	u.mu.Unlock()
	sort.Strings(names)
	return names
}

// Notify subscribes to parameter changes driven through the unit. The
// returned func cancels the subscription.
func (u *Unit) Notify(fn func(name string, value float64)) (cancel func()) {
	u.mu.Lock()
	if u.watchers == nil {
		u.watchers = make(map[int]func(string, float64))
	}
	id := u.nextID
	u.nextID++
	u.watchers[id] = fn
	u.mu.Unlock()
	return func() {
		u.mu.Lock()
		delete(u.watchers, id)
		u.mu.Unlock()
	}
}

func (u *Unit) param(name string) (*automation.Param, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != Live {
		return nil, ErrNotLive
	}
	p, ok := u.params[name]
	if !ok {
		return nil, ErrUnknownParam
	}
	return p, nil
}

// Changed fires change watchers outside the unit lock. Concrete units
// call it for parameters which do not map to an automation param.
func (u *Unit) Changed(name string, value float64) {
	u.mu.Lock()
	fns := make([]func(string, float64), 0, len(u.watchers))
	for _, fn := range u.watchers {
		fns = append(fns, fn)
	}
	u.mu.Unlock()
	for _, fn := range fns {
		fn(name, value)
	}
}
