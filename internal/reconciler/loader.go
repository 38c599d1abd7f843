package reconciler

import (
	"sync"

	"github.com/example/tripview/internal/observability"
)

// Loader is the shared loading-indicator reference count. Several
// overlapping operations (the first snapshot fetch, an in-flight directions
// request) share one indicator; it hides only when every Show has been
// balanced by a Hide.
type Loader struct {
	mu    sync.Mutex
	depth int
}

func NewLoader() *Loader { return &Loader{} }

func (l *Loader) Show() {
	l.mu.Lock()
	l.depth++
	observability.LoaderDepth.Set(float64(l.depth))
	l.mu.Unlock()
}

func (l *Loader) Hide() {
	l.mu.Lock()
	if l.depth > 0 {
		l.depth--
	}
	observability.LoaderDepth.Set(float64(l.depth))
	l.mu.Unlock()
}

// Visible reports whether any operation currently holds the indicator.
func (l *Loader) Visible() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth > 0
}

// Depth returns the current reference count.
func (l *Loader) Depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth
}
