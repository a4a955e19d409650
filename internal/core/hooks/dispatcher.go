package hooks

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/modforge/modforge/internal/core/observability/log"
)

// Subscription is a registered handler bound to one notification.
type Subscription struct {
	id           string
	notification Notification
	priority     int
	seq          uint64
	handler      Handler
	active       bool
	cancel       func()
}

func (s *Subscription) ID() string                 { return s.id }
func (s *Subscription) Notification() Notification { return s.notification }
func (s *Subscription) Priority() int              { return s.priority }
func (s *Subscription) IsActive() bool             { return s.active }

// Cancel de-registers the handler. Multiple calls are safe. Cancelling
// during a dispatch of the same notification takes effect immediately for
// handlers that have not yet run.
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
	s.active = false
}

// Dispatcher routes lifecycle notifications to priority-ordered listener
// lists. It is not safe for concurrent use; all notifications arrive on
// the host's single control thread.
type Dispatcher struct {
	listeners map[Notification][]*Subscription
	seq       uint64
	log       log.Log
}

func NewDispatcher(lg log.Log) *Dispatcher {
	return &Dispatcher{
		listeners: make(map[Notification][]*Subscription),
		log:       lg.Named("hooks"),
	}
}

// Subscribe registers a handler at the given priority and returns its
// Subscription handle.
func (d *Dispatcher) Subscribe(n Notification, priority int, h Handler) *Subscription {
	d.seq++
	s := &Subscription{
		id:           uuid.NewString(),
		notification: n,
		priority:     priority,
		seq:          d.seq,
		handler:      h,
		active:       true,
	}
	s.cancel = func() { d.remove(n, s.id) }

	list := append(d.listeners[n], s)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority < list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	d.listeners[n] = list
	return s
}

// Emit delivers the notification to every active listener, in order. All
// handlers run regardless of earlier failures; errors are logged and
// returned joined.
func (d *Dispatcher) Emit(n Notification, data any) error {
	list := d.listeners[n]
	if len(list) == 0 {
		return nil
	}
	snapshot := make([]*Subscription, len(list))
	copy(snapshot, list)

	event := Event{Notification: n, Data: data, At: time.Now()}
	var all error
	for _, s := range snapshot {
		if !s.active {
			continue
		}
		if err := d.invoke(s, event); err != nil {
			d.log.Error("listener failed",
				log.String("notification", string(n)),
				log.String("subscription", s.id),
				log.Error(err),
			)
			all = errors.Join(all, err)
		}
	}
	return all
}

// Listeners reports how many active listeners a notification has.
func (d *Dispatcher) Listeners(n Notification) int {
	count := 0
	for _, s := range d.listeners[n] {
		if s.active {
			count++
		}
	}
	return count
}

func (d *Dispatcher) invoke(s *Subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return s.handler(event)
}

func (d *Dispatcher) remove(n Notification, id string) {
	list := d.listeners[n]
	for i, s := range list {
		if s.id == id {
			d.listeners[n] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
