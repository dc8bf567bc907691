// Package worker runs plugin-supplied blocking work off the realtime
// thread: a Threaded mode with a dedicated goroutine,
// a request ring and a response ring, and an Inline mode that runs the
// same call synchronously under a global work lock for state restore
// and offline rendering.
package worker

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/jalv-go/jalv/internal/lv2"
	"github.com/jalv-go/jalv/pkg/ring"
)

// Mode selects the scheduling strategy.
type Mode int

const (
	Threaded Mode = iota
	Inline
)

// Worker offloads lv2.Worker.Work calls off the caller, per the
// Threaded/Inline split described above.
type Worker struct {
	mode Mode
	lock *sync.Mutex // shared "global work lock" across every worker instance

	plugin lv2.Worker

	reqRing  *ring.Ring // RT thread -> worker goroutine, threaded mode only
	respRing *ring.Ring // worker goroutine -> RT thread, threaded mode only

	// respScratch is DrainResponses' preallocated receive buffer, sized
	// to the response ring's capacity so no single response can exceed
	// it; the RT thread decodes into it instead of allocating per response.
	respScratch []byte

	sem chan struct{} // counting semaphore signaling pending requests

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	launched bool
	exited   bool
	mu       sync.Mutex // guards launched/exited, not the RT path
}

// New constructs a Worker in the given mode, sharing lock with every
// other worker instance in the host (there is exactly one global work
// lock shared with any other worker running concurrently).
func New(mode Mode, lock *sync.Mutex, ringBytes int) *Worker {
	w := &Worker{mode: mode, lock: lock}
	if mode == Threaded {
		w.reqRing = ring.New(ringBytes)
		w.respRing = ring.New(ringBytes)
		w.sem = make(chan struct{}, 4096)
		w.respScratch = make([]byte, ringBytes)
	}
	return w
}

// Attach installs the plugin-side Worker implementation. Must be called
// before the first Schedule.
func (w *Worker) Attach(plugin lv2.Worker) {
	w.plugin = plugin
}

// Launch spawns the worker goroutine (no-op for Inline mode).
func (w *Worker) Launch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.launched || w.mode == Inline {
		return
	}
	w.launched = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.wg.Add(1)
	go w.loop()
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.sem:
			for w.reqRing.ReadSpace() >= 4 {
				w.runOneTask()
			}
		}
	}
}

func (w *Worker) runOneTask() {
	lenBuf := make([]byte, 4)
	if err := w.reqRing.Read(lenBuf); err != nil {
		return
	}
	n := binary.NativeEndian.Uint32(lenBuf)
	body := make([]byte, n)
	if n > 0 {
		if err := w.reqRing.Read(body); err != nil {
			return
		}
	}

	w.lock.Lock()
	defer w.lock.Unlock()
	if w.plugin != nil {
		_ = w.plugin.Work(w.respond, body)
	}
}

// respond is the respond_cb passed to plugin.Work: it writes a
// length-prefixed reply to the response ring.
func (w *Worker) respond(body []byte) error {
	header := make([]byte, 4)
	binary.NativeEndian.PutUint32(header, uint32(len(body)))

	tx := w.respRing.BeginWrite()
	if err := w.respRing.AmendWrite(&tx, header); err != nil {
		return err
	}
	if len(body) > 0 {
		if err := w.respRing.AmendWrite(&tx, body); err != nil {
			return err
		}
	}
	return w.respRing.CommitWrite(tx)
}

// Schedule is called from the RT thread during plugin.Run. In Threaded
// mode it writes a length-prefixed task and posts the semaphore,
// returning immediately. In Inline mode it calls plugin.Work directly
// under the global work lock, which may deliver responses via the
// caller-supplied onResponse before Schedule returns.
func (w *Worker) Schedule(body []byte, onResponse func([]byte) error) error {
	if w.mode == Inline {
		w.lock.Lock()
		defer w.lock.Unlock()
		if w.plugin == nil {
			return nil
		}
		return w.plugin.Work(onResponse, body)
	}

	var header [4]byte
	binary.NativeEndian.PutUint32(header[:], uint32(len(body)))

	tx := w.reqRing.BeginWrite()
	if err := w.reqRing.AmendWrite(&tx, header[:]); err != nil {
		return err
	}
	if len(body) > 0 {
		if err := w.reqRing.AmendWrite(&tx, body); err != nil {
			return err
		}
	}
	if err := w.reqRing.CommitWrite(tx); err != nil {
		return err
	}

	select {
	case w.sem <- struct{}{}:
	default:
		// Semaphore buffer saturated: the request is already visible on
		// the ring, so the worker will still observe it on its next
		// receive even though this particular post was dropped.
	}
	return nil
}

// DrainResponses is called from the RT thread once per cycle after
// plugin.Run: it reads every response currently available on the
// response ring and invokes plugin.WorkResponse for each, then calls
// plugin.EndRun. No-op in Inline mode, since Schedule already delivered
// responses synchronously.
func (w *Worker) DrainResponses() {
	if w.mode == Inline || w.plugin == nil {
		return
	}

	var lenBuf [4]byte
	for w.respRing.ReadSpace() >= 4 {
		if err := w.respRing.Peek(lenBuf[:]); err != nil {
			break
		}
		n := binary.NativeEndian.Uint32(lenBuf[:])
		if w.respRing.ReadSpace() < 4+int(n) {
			break
		}
		_ = w.respRing.Skip(4)
		if int(n) > len(w.respScratch) {
			// Cannot exceed the response ring's own capacity in
			// practice; drop defensively rather than grow on the RT
			// thread.
			_ = w.respRing.Skip(int(n))
			continue
		}
		var body []byte
		if n > 0 {
			body = w.respScratch[:n]
			_ = w.respRing.Read(body)
		}
		w.plugin.WorkResponse(body)
	}
	w.plugin.EndRun()
}

// Exit stops the worker goroutine; idempotent, safe to call multiple
// times, and joins the goroutine before returning.
func (w *Worker) Exit() {
	w.mu.Lock()
	if w.exited || w.mode == Inline {
		w.exited = true
		w.mu.Unlock()
		return
	}
	w.exited = true
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

// Free releases the worker, calling Exit first.
func (w *Worker) Free() {
	w.Exit()
}
