package standard

import (
	"sync"

	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/task"
)

// EmptyNotifier is storage that reschedules listening tasks when it goes
// from empty to non-empty.
type EmptyNotifier interface {
	AddEmptyListener(t *task.Task)
}

// listeners is an embeddable EmptyNotifier implementation.
type listeners struct {
	mu    sync.Mutex
	tasks []*task.Task
}

func (l *listeners) AddEmptyListener(t *task.Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, old := range l.tasks {
		if old == t {
			return
		}
	}
	l.tasks = append(l.tasks, t)
}

func (l *listeners) wake() {
	l.mu.Lock()
	tasks := l.tasks
	l.mu.Unlock()
	for _, t := range tasks {
		t.Reschedule()
	}
}

// listenUpstream registers t with the storage feeding input port of e. It
// reports whether every storage element found notifies; only then may t
// sleep when a pull comes back empty. Otherwise t must poll.
func listenUpstream(e element.Element, port int, t *task.Task) bool {
	found, err := e.BaseElement().Router().UpstreamElements(e, port, element.IsStorage)
	if err != nil || len(found) == 0 {
		return false
	}
	for _, s := range found {
		if _, ok := s.(EmptyNotifier); !ok {
			return false
		}
	}
	for _, s := range found {
		s.(EmptyNotifier).AddEmptyListener(t)
	}
	return true
}
