package tasks

// Observer receives progress counters from the pipeline.
type Observer interface {
	OnProgress(kind Phase, delta int)
}

// ObserverFunc adapts a function to [Observer].
type ObserverFunc func(kind Phase, delta int)

func (f ObserverFunc) OnProgress(kind Phase, delta int) { f(kind, delta) }

// MultiObserver fans an event out to every non-nil observer.
type MultiObserver []Observer

func (m MultiObserver) OnProgress(kind Phase, delta int) {
	for _, o := range m {
		if o != nil {
			o.OnProgress(kind, delta)
		}
	}
}

// ChannelObserver forwards events as [ProgressUpdate] values without blocking.
type ChannelObserver struct {
	ch chan<- ProgressUpdate
}

// NewChannelObserver returns an observer that sends on ch. A nil ch drops every event.
func NewChannelObserver(ch chan<- ProgressUpdate) *ChannelObserver {
	return &ChannelObserver{ch: ch}
}

// OnProgress uses select with default so a full channel skips the update.
func (c *ChannelObserver) OnProgress(kind Phase, delta int) {
	if c == nil || c.ch == nil {
		return
	}
	select {
	case c.ch <- newUpdate(kind, delta):
	default:
	}
}

type nopObserver struct{}

func (nopObserver) OnProgress(Phase, int) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
