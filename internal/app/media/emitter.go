package media

import "sync"

// Emitter delivers events to subscribers from a dedicated goroutine.
// Emit never blocks and never calls subscribers synchronously.
type Emitter struct {
	mu     sync.Mutex
	subs   map[uint64]func(Event)
	nextID uint64
	queue  []Event
	closed bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewEmitter creates an emitter and starts its delivery goroutine.
func NewEmitter() *Emitter {
	e := &Emitter{
		subs: make(map[uint64]func(Event)),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

// Subscribe registers fn and returns its unsubscribe func.
func (e *Emitter) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

// Emit queues ev for delivery.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, ev)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Close stops delivery. Pending events are dropped.
func (e *Emitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.queue = nil
	e.mu.Unlock()

	close(e.done)
	e.wg.Wait()
}

func (e *Emitter) run() {
	defer e.wg.Done()

	for {
		select {
		case <-e.done:
			return
		case <-e.wake:
		}

		e.mu.Lock()
		pending := e.queue
		e.queue = nil
		subs := make([]func(Event), 0, len(e.subs))
		for _, fn := range e.subs {
			subs = append(subs, fn)
		}
		e.mu.Unlock()

		for _, ev := range pending {
			for _, fn := range subs {
				fn(ev)
			}
		}
	}
}
