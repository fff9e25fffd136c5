package session

import "sync"

type observer struct {
	id uint64
	fn func()
}

// Observers is an ordered listener list whose Add returns the disposer.
// The zero value is ready to use.
type Observers struct {
	mu     sync.Mutex
	nextID uint64
	list   []observer
}

func (o *Observers) Add(fn func()) (dispose func()) {
	if fn == nil {
		return func() {}
	}
	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.list = append(o.list, observer{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *Observers) remove(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, ob := range o.list {
		if ob.id == id {
			o.list = append(o.list[:i:i], o.list[i+1:]...)
			return
		}
	}
}

// Notify calls every listener registered at the time of the call, in
// registration order, outside the lock.
func (o *Observers) Notify() {
	o.mu.Lock()
	snapshot := make([]observer, len(o.list))
	copy(snapshot, o.list)
	o.mu.Unlock()
	for _, ob := range snapshot {
		ob.fn()
	}
}

func (o *Observers) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.list)
}
