package temi

import (
	"sync"
	"sync/atomic"
)

// Subscription is returned by every listener registration.
// Call Close to unregister the listener; Close is idempotent.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Close removes the listener, preventing future deliveries.
func (s *Subscription) Close() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(s.cancel)
}

type entry[T any] struct {
	id    uint64
	value T
}

// listenerSet is a copy-on-write collection. Writers replace the slice under
// mu; readers load the current slice without locking and never observe a
// concurrent mutation.
type listenerSet[T any] struct {
	mu     sync.Mutex
	nextID uint64
	items  atomic.Pointer[[]entry[T]]
}

func (s *listenerSet[T]) add(v T) *Subscription {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	old := s.load()
	next := make([]entry[T], len(old), len(old)+1)
	copy(next, old)
	next = append(next, entry[T]{id: id, value: v})
	s.items.Store(&next)
	s.mu.Unlock()

	return &Subscription{cancel: func() { s.remove(id) }}
}

func (s *listenerSet[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.load()
	next := make([]entry[T], 0, len(old))
	for _, e := range old {
		if e.id != id {
			next = append(next, e)
		}
	}
	s.items.Store(&next)
}

func (s *listenerSet[T]) load() []entry[T] {
	if p := s.items.Load(); p != nil {
		return *p
	}
	return nil
}

// snapshot returns the listeners registered at the time of the call.
func (s *listenerSet[T]) snapshot() []T {
	items := s.load()
	out := make([]T, len(items))
	for i, e := range items {
		out[i] = e.value
	}
	return out
}

func (s *listenerSet[T]) len() int {
	return len(s.load())
}

func (s *listenerSet[T]) empty() bool {
	return s.len() == 0
}

// telepresenceListener only hears about its own session.
type telepresenceListener struct {
	sessionID string
	fn        func(CallState)
}

func (l telepresenceListener) accepts(state CallState) bool {
	return l.fn != nil && state.SessionID == l.sessionID
}

// usersListener hears about every user when ids is empty, otherwise only
// about the listed ones.
type usersListener struct {
	ids map[string]struct{}
	fn  func(UserInfo)
}

func newUsersListener(ids []string, fn func(UserInfo)) usersListener {
	l := usersListener{fn: fn}
	if len(ids) > 0 {
		l.ids = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			l.ids[id] = struct{}{}
		}
	}
	return l
}

func (l usersListener) accepts(user UserInfo) bool {
	if l.fn == nil {
		return false
	}
	if len(l.ids) == 0 {
		return true
	}
	_, ok := l.ids[user.UserID]
	return ok
}

// registries groups the per-event listener sets.
type registries struct {
	ready            listenerSet[func(bool)]
	wakeupWord       listenerSet[func(string)]
	tts              listenerSet[func(TtsRequest)]
	nlp              listenerSet[func(NlpResult)]
	conversationView listenerSet[func(bool)]
	beWithMe         listenerSet[func(string)]
	goToLocation     listenerSet[func(GoToLocationStatus)]
	locationsUpdated listenerSet[func([]string)]
	telepresence     listenerSet[telepresenceListener]
	usersUpdated     listenerSet[usersListener]
	welcomingMode    listenerSet[func(string)]

	mu                    sync.RWMutex
	mediaButton           MediaButtonListener
	activityStreamPublish func(ActivityStreamPublishMessage)
}

// GoToLocationStatus is delivered to go-to listeners.
type GoToLocationStatus struct {
	Location      string `json:"location"`
	Status        string `json:"status"`
	DescriptionID int    `json:"description_id"`
	Description   string `json:"description"`
}
