package standard

import (
	"strconv"
	"strings"
	"sync"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/errh"
)

// intHandlers returns a read and a write function for an integer guarded
// by mu. The write rejects values below lo and calls after on success.
func intHandlers(mu sync.Locker, v *int, name string, lo int, after func()) (func() string, func(string, *errh.Handler) error) {
	read := func() string {
		mu.Lock()
		defer mu.Unlock()
		return strconv.Itoa(*v)
	}
	write := func(data string, eh *errh.Handler) error {
		n, err := confparse.ParseInt(strings.TrimSpace(data))
		if err != nil || n < lo {
			return eh.Error("'%s' takes an integer of at least %d", name, lo)
		}
		mu.Lock()
		*v = n
		mu.Unlock()
		if after != nil {
			after()
		}
		return nil
	}
	return read, write
}

// boolHandlers is intHandlers for booleans.
func boolHandlers(mu sync.Locker, v *bool, name string, after func()) (func() string, func(string, *errh.Handler) error) {
	read := func() string {
		mu.Lock()
		defer mu.Unlock()
		return strconv.FormatBool(*v)
	}
	write := func(data string, eh *errh.Handler) error {
		b, err := confparse.ParseBool(strings.TrimSpace(data))
		if err != nil {
			return eh.Error("'%s' takes a bool", name)
		}
		mu.Lock()
		*v = b
		mu.Unlock()
		if after != nil {
			after()
		}
		return nil
	}
	return read, write
}
