// Package registry is the authoritative map of connections, devices,
// operator indices and workout sessions. Every method is one critical
// section under a single mutex; none of them performs network I/O.
package registry

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/seandooa/cg4002-capstone-code/internal/protocol"
	"github.com/seandooa/cg4002-capstone-code/internal/workout"
)

// All is the identifier that addresses every open device.
const All = "all"

var (
	ErrNotFound      = errors.New("device not found")
	ErrEmptyDeviceID = errors.New("empty device id")
)

// Conn is a device transport as seen by the registry. Send must be
// best-effort and must not block.
type Conn interface {
	ID() string
	Open() bool
	Send(msg protocol.Outbound) error
}

// RegistrationKind tells whether a registration created or replaced a binding.
type RegistrationKind int

const (
	Fresh RegistrationKind = iota
	Replace
)

func (k RegistrationKind) String() string {
	if k == Replace {
		return "replace"
	}
	return "fresh"
}

// Registration is the outcome of Register. Previous is the connection that
// was bound to the device before, if it differs from the new one. The
// registry does not close it.
type Registration struct {
	Kind     RegistrationKind
	Index    int
	Previous Conn
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	All       bool
	DeviceIDs []string
}

// Entry is one row of List.
type Entry struct {
	Index        int           `json:"index"`
	DeviceID     string        `json:"device_id"`
	ExerciseType string        `json:"exercise_type"`
	Online       bool          `json:"online"`
	State        workout.State `json:"-"`
	StateName    string        `json:"state"`
}

// Target is a bound device selected for an action, with its session as it
// was right after the action.
type Target struct {
	DeviceID     string
	Index        int
	ExerciseType string
	Conn         Conn
	Session      workout.Summary
	WasActive    bool
}

// Delivery is one open device's share of a broadcast cycle.
type Delivery struct {
	DeviceID     string
	ExerciseType string
	Conn         Conn
	Metrics      protocol.Metrics
	HasMetrics   bool
}

type device struct {
	id       string
	conn     Conn
	exercise string
	index    int
}

// Registry is safe for concurrent use.
type Registry struct {
	mu           sync.Mutex
	conns        map[Conn]string // attached connections -> bound device id, "" until registered
	devices      map[string]*device
	index        map[int]string
	lastIndex    int
	sessions     map[string]*workout.Session
	offlineSince map[string]time.Time
	now          func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		conns:        make(map[Conn]string),
		devices:      make(map[string]*device),
		index:        make(map[int]string),
		sessions:     make(map[string]*workout.Session),
		offlineSince: make(map[string]time.Time),
		now:          time.Now,
	}
}

// Attach records an accepted connection that has not registered yet.
func (r *Registry) Attach(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c]; !ok {
		r.conns[c] = ""
	}
}

// Register binds c to deviceID and allocates a fresh index. A later
// registration for the same device id replaces the earlier binding and
// retires its index.
func (r *Registry) Register(c Conn, deviceID, exercise string) (Registration, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return Registration{}, ErrEmptyDeviceID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The connection may switch identities; drop its old binding first.
	if old := r.conns[c]; old != "" && old != deviceID {
		if d := r.devices[old]; d != nil && d.conn == c {
			r.unbindLocked(d, r.now())
		}
	}

	reg := Registration{Kind: Fresh}
	if prev := r.devices[deviceID]; prev != nil {
		reg.Kind = Replace
		if prev.conn != c {
			reg.Previous = prev.conn
			r.conns[prev.conn] = ""
		}
		delete(r.index, prev.index)
		if exercise == "" {
			exercise = prev.exercise
		}
	}

	r.lastIndex++
	reg.Index = r.lastIndex
	r.index[reg.Index] = deviceID
	r.devices[deviceID] = &device{id: deviceID, conn: c, exercise: exercise, index: reg.Index}
	r.conns[c] = deviceID
	delete(r.offlineSince, deviceID)
	return reg, nil
}

// Unregister forgets c. If c is still the bound connection of its device,
// the binding and its index are removed. Sessions are kept. It returns the
// device id c was registered as, and whether a binding was removed.
func (r *Registry) Unregister(c Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, attached := r.conns[c]
	delete(r.conns, c)
	if !attached || id == "" {
		return id, false
	}
	d := r.devices[id]
	if d == nil || d.conn != c {
		return id, false
	}
	r.unbindLocked(d, r.now())
	return id, true
}

func (r *Registry) unbindLocked(d *device, now time.Time) {
	delete(r.devices, d.id)
	delete(r.index, d.index)
	r.offlineSince[d.id] = now
}

// DeviceFor returns the device id c is bound to.
func (r *Registry) DeviceFor(c Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.conns[c]
	if id == "" {
		return "", false
	}
	if d := r.devices[id]; d == nil || d.conn != c {
		return "", false
	}
	return id, true
}

// Resolve turns an operator identifier into device ids. "all" yields every
// open device (possibly none). A base-10 integer is always an index; any
// other string is a device id that must currently be bound.
func (r *Registry) Resolve(identifier string) (Resolution, error) {
	identifier = strings.TrimSpace(identifier)

	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.EqualFold(identifier, All) {
		res := Resolution{All: true}
		for _, d := range r.sortedLocked() {
			if d.conn.Open() {
				res.DeviceIDs = append(res.DeviceIDs, d.id)
			}
		}
		return res, nil
	}

	if n, err := strconv.Atoi(identifier); err == nil {
		id, ok := r.index[n]
		if !ok {
			return Resolution{}, ErrNotFound
		}
		return Resolution{DeviceIDs: []string{id}}, nil
	}

	if _, ok := r.devices[identifier]; !ok {
		return Resolution{}, ErrNotFound
	}
	return Resolution{DeviceIDs: []string{identifier}}, nil
}

// ConnectionFor returns the connection bound to deviceID.
func (r *Registry) ConnectionFor(deviceID string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.devices[deviceID]
	if d == nil {
		return nil, false
	}
	return d.conn, true
}

// List returns all bound devices ordered by index.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	devs := r.sortedLocked()
	out := make([]Entry, 0, len(devs))
	for _, d := range devs {
		st := r.sessions[d.id].State()
		out = append(out, Entry{
			Index:        d.index,
			DeviceID:     d.id,
			ExerciseType: d.exercise,
			Online:       d.conn.Open(),
			State:        st,
			StateName:    st.String(),
		})
	}
	return out
}

// Counts returns the number of attached connections and bound devices.
func (r *Registry) Counts() (connections, devices int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns), len(r.devices)
}

func (r *Registry) sortedLocked() []*device {
	devs := make([]*device, 0, len(r.devices))
	for _, d := range r.devices {
		devs = append(devs, d)
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].index < devs[j].index })
	return devs
}

// openLocked returns the bound, open device for id.
func (r *Registry) openLocked(id string) *device {
	d := r.devices[id]
	if d == nil || !d.conn.Open() {
		return nil
	}
	return d
}

func (r *Registry) sessionLocked(id string, now time.Time) *workout.Session {
	s := r.sessions[id]
	if s == nil {
		s = workout.NewSession(now)
		r.sessions[id] = s
	}
	return s
}

func (r *Registry) targetLocked(d *device, now time.Time) Target {
	t := Target{DeviceID: d.id, Index: d.index, ExerciseType: d.exercise, Conn: d.conn}
	if s := r.sessions[d.id]; s != nil {
		t.Session = s.Summarize(now)
	}
	return t
}
