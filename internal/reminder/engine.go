// Package reminder keeps the per-event reminder view, routes set/remove
// through the store that owns the current owner's reminders, migrates device
// reminders on login and reacts to events disappearing from the catalog.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sort"
	"strconv"
	"sync"

	"devnotify/internal/models"
	"devnotify/internal/permission"
	"devnotify/internal/store"

	"golang.org/x/sync/singleflight"
)

type Status string

const (
	StatusUnset    Status = "unset"
	StatusSetting  Status = "setting"
	StatusSet      Status = "set"
	StatusRemoving Status = "removing"
	StatusRemoved  Status = "removed"
	StatusError    Status = "error"
)

const (
	MsgSet     = "Reminder set!"
	MsgRemoved = "Reminder removed!"
	MsgFailed  = "Failed to update reminder. Please try again."
	MsgBlocked = "Notifications blocked. Please enable in browser settings."
)

// View is what presentation code sees for one event.
type View struct {
	EventID  int    `json:"eventId"`
	Status   Status `json:"status"`
	Reminded bool   `json:"reminded"`
	Message  string `json:"message,omitempty"`
}

// Permission is satisfied by *permission.Gate.
type Permission interface {
	Ensure(ctx context.Context) (permission.State, error)
}

// Subscriber is satisfied by *notify.Channel.
type Subscriber interface {
	Subscribe(ctx context.Context, owner models.Owner) error
}

type entry struct {
	status  Status
	set     bool
	loaded  bool
	busy    bool
	message string
}

func (en *entry) view(eventID int) View {
	return View{EventID: eventID, Status: en.status, Reminded: en.set, Message: en.message}
}

// Engine is the single source of the "is a reminder set for event E" view. It
// holds no authoritative copy; the stores do.
type Engine struct {
	stores  store.Selector
	gate    Permission
	channel Subscriber
	loads   singleflight.Group

	mu      sync.Mutex
	owner   models.Owner
	gen     uint64
	entries map[int]*entry
	deleted map[int]bool
}

type Option func(*Engine)

// WithOwner sets the owner context the engine starts with. The default is anonymous.
func WithOwner(owner models.Owner) Option {
	return func(e *Engine) {
		e.owner = owner
	}
}

// New builds an engine. channel may be nil, or a nil *notify.Channel, when
// push delivery is not set up.
func New(stores store.Selector, gate Permission, channel Subscriber, opts ...Option) *Engine {
	if isNilSubscriber(channel) {
		channel = nil
	}
	e := &Engine{
		stores:  stores,
		gate:    gate,
		channel: channel,
		owner:   models.Anonymous(),
		entries: make(map[int]*entry),
		deleted: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func isNilSubscriber(s Subscriber) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func (e *Engine) Owner() models.Owner {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owner
}

// entry must be called with mu held.
func (e *Engine) entry(eventID int) *entry {
	en, ok := e.entries[eventID]
	if !ok {
		en = &entry{status: StatusUnset}
		e.entries[eventID] = en
	}
	return en
}

// View returns the current view of eventID without loading it.
func (e *Engine) View(eventID int) View {
	e.mu.Lock()
	defer e.mu.Unlock()
	if en, ok := e.entries[eventID]; ok {
		return en.view(eventID)
	}
	return View{EventID: eventID, Status: StatusUnset}
}

// Views returns every event that was loaded or is being toggled, ordered by event ID.
func (e *Engine) Views() []View {
	e.mu.Lock()
	defer e.mu.Unlock()
	views := make([]View, 0, len(e.entries))
	for id, en := range e.entries {
		if !en.loaded && !en.busy {
			continue
		}
		views = append(views, en.view(id))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].EventID < views[j].EventID })
	return views
}

// List returns the current owner's reminders from the backend that owns them.
func (e *Engine) List(ctx context.Context) ([]models.Reminder, error) {
	owner := e.Owner()
	return e.stores.For(owner).List(ctx, owner)
}

// Load computes the initial view for an event from the active backend. The
// backend is queried once per event and owner; later calls return the view.
func (e *Engine) Load(ctx context.Context, eventID int) (View, error) {
	e.mu.Lock()
	en := e.entry(eventID)
	if en.loaded || en.busy || e.deleted[eventID] {
		v := en.view(eventID)
		e.mu.Unlock()
		return v, nil
	}
	owner, gen := e.owner, e.gen
	e.mu.Unlock()

	key := strconv.FormatUint(gen, 10) + "/" + strconv.Itoa(eventID)
	res, err, _ := e.loads.Do(key, func() (interface{}, error) {
		_, found, err := e.stores.For(owner).Get(ctx, owner, eventID)
		return found, err
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	en = e.entry(eventID)
	if err != nil {
		return en.view(eventID), err
	}
	if gen == e.gen && !en.loaded && !en.busy {
		en.loaded = true
		en.set = res.(bool)
		if en.set {
			en.status = StatusSet
		} else {
			en.status = StatusUnset
		}
	}
	return en.view(eventID), nil
}

// Toggle sets the reminder for ev if none is set, otherwise removes it. Only
// one toggle per event runs at a time; a toggle on a busy event returns
// ErrToggleInProgress and changes nothing.
//
// The returned view carries the outcome: StatusSet, StatusRemoved or
// StatusError. Afterwards View reports the settled state, so a removal reads
// as StatusUnset and a failure reads as whatever held before the attempt.
func (e *Engine) Toggle(ctx context.Context, ev models.Event) (View, error) {
	if _, err := e.Load(ctx, ev.ID); err != nil {
		v := e.View(ev.ID)
		v.Status = StatusError
		v.Message = MsgFailed
		return v, err
	}

	e.mu.Lock()
	en := e.entry(ev.ID)
	if e.deleted[ev.ID] {
		v := en.view(ev.ID)
		e.mu.Unlock()
		return v, models.ErrEventDeleted
	}
	if en.busy {
		v := en.view(ev.ID)
		e.mu.Unlock()
		return v, models.ErrToggleInProgress
	}
	en.busy = true
	en.message = ""
	owner, gen, wasSet := e.owner, e.gen, en.set
	if wasSet {
		en.status = StatusRemoving
	}
	e.mu.Unlock()

	if wasSet {
		return e.remove(ctx, owner, gen, ev.ID)
	}
	return e.set(ctx, owner, gen, ev)
}

// settle ends a toggle. Views belonging to a previous owner are left alone,
// and an event deleted from the catalog never settles as set.
func (e *Engine) settle(eventID int, gen uint64, status Status, set bool, msg string) View {
	e.mu.Lock()
	defer e.mu.Unlock()
	if set && e.deleted[eventID] {
		status, set = StatusUnset, false
	}
	if gen != e.gen {
		return View{EventID: eventID, Status: status, Reminded: set, Message: msg}
	}
	en := e.entry(eventID)
	en.busy = false
	en.loaded = true
	en.status = status
	en.set = set
	en.message = msg
	return en.view(eventID)
}

func failed(v View) View {
	v.Status = StatusError
	return v
}

func (e *Engine) set(ctx context.Context, owner models.Owner, gen uint64, ev models.Event) (View, error) {
	state, err := e.gate.Ensure(ctx)
	if err != nil {
		return failed(e.settle(ev.ID, gen, StatusUnset, false, MsgFailed)), err
	}
	if state != permission.Granted {
		v := e.settle(ev.ID, gen, StatusUnset, false, MsgBlocked)
		return failed(v), fmt.Errorf("%w: permission %s", models.ErrPermissionDenied, state)
	}

	e.mu.Lock()
	if gen == e.gen {
		e.entry(ev.ID).status = StatusSetting
	}
	e.mu.Unlock()

	backend := e.stores.For(owner)
	if err := backend.Put(ctx, owner, models.NewReminder(ev)); err != nil {
		log.Printf("[sync] set reminder for event %d (%s) failed: %v", ev.ID, owner, err)
		return failed(e.settle(ev.ID, gen, StatusUnset, false, MsgFailed)), err
	}

	// The event may have been deleted while the write was in flight.
	if e.isDeleted(ev.ID) {
		if err := backend.Delete(ctx, owner, ev.ID); err != nil {
			log.Printf("[sync] remove reminder for deleted event %d (%s) failed: %v", ev.ID, owner, err)
		}
		return failed(e.settle(ev.ID, gen, StatusUnset, false, MsgFailed)), models.ErrEventDeleted
	}

	if owner.IsAuthenticated() {
		e.subscribe(ctx, owner)
	}
	v := e.settle(ev.ID, gen, StatusSet, true, MsgSet)
	return v, nil
}

func (e *Engine) remove(ctx context.Context, owner models.Owner, gen uint64, eventID int) (View, error) {
	err := e.stores.For(owner).Delete(ctx, owner, eventID)
	if err != nil {
		if owner.IsAuthenticated() {
			log.Printf("[sync] remove reminder for event %d (%s) failed: %v", eventID, owner, err)
			// Still set, unless the watcher removed it from the account meanwhile.
			return failed(e.settle(eventID, gen, StatusSet, true, MsgFailed)), err
		}
		log.Printf("[sync] local remove for event %d failed, treating as removed: %v", eventID, err)
	}

	v := e.settle(eventID, gen, StatusUnset, false, MsgRemoved)
	v.Status = StatusRemoved
	return v, nil
}

// subscribe registers the owner for delivery. Failure never undoes a reminder.
func (e *Engine) subscribe(ctx context.Context, owner models.Owner) {
	if e.channel == nil {
		return
	}
	if err := e.channel.Subscribe(ctx, owner); err != nil {
		log.Printf("[sync] delivery channel subscribe for %s failed: %v", owner, err)
	}
}

// switchOwner installs owner and drops every view, which are recomputed
// against the new backend on the next Load.
func (e *Engine) switchOwner(owner models.Owner) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.owner = owner
	e.gen++
	e.entries = make(map[int]*entry)
}

// Login switches to an authenticated owner and migrates the device's
// reminders into their account. A migration error is reported but does not
// undo the login; unmigrated reminders stay on the device for the next try.
func (e *Engine) Login(ctx context.Context, owner models.Owner) (MigrationReport, error) {
	if !owner.IsAuthenticated() {
		return MigrationReport{}, fmt.Errorf("%w: login needs a user id and token", models.ErrUnauthorized)
	}
	e.switchOwner(owner)
	return e.Migrate(ctx)
}

// Logout returns to the anonymous device owner and ends the delivery session.
func (e *Engine) Logout() {
	e.switchOwner(models.Anonymous())
	if r, ok := e.channel.(interface{ Reset() }); ok {
		r.Reset()
	}
}

// markDeleted must be called with mu held.
func (e *Engine) markDeleted(eventID int) {
	e.deleted[eventID] = true
}

// Deleted reports whether eventID was removed from the catalog this session.
func (e *Engine) Deleted(eventID int) bool {
	return e.isDeleted(eventID)
}

func (e *Engine) isDeleted(eventID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleted[eventID]
}

// clear shows eventID as having no reminder, unless a toggle is running on it.
func (e *Engine) clear(eventID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	en := e.entry(eventID)
	if en.busy {
		return
	}
	en.loaded = true
	en.set = false
	en.status = StatusUnset
	en.message = ""
}

// markSet records a reminder that appeared in the active backend outside a toggle.
func (e *Engine) markSet(eventID int, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return
	}
	en := e.entry(eventID)
	if en.busy {
		return
	}
	en.loaded = true
	en.set = true
	en.status = StatusSet
}

var errNoLocalStore = errors.New("no local store configured")
