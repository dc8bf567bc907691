// Package host assembles every other package into the running
// program: port/control setup, the RT process cycle, worker threads,
// the audio backend, and the UI-side update loop. It follows the usual
// app lifecycle shape — Open, Run, Wait, Close — built on the same
// context+cancel+WaitGroup shutdown idiom used throughout this tree.
package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"github.com/jalv-go/jalv/internal/anyvalue"
	"github.com/jalv-go/jalv/internal/applog"
	"github.com/jalv-go/jalv/internal/backend"
	"github.com/jalv-go/jalv/internal/config"
	"github.com/jalv-go/jalv/internal/controls"
	"github.com/jalv-go/jalv/internal/lv2"
	"github.com/jalv-go/jalv/internal/patch"
	"github.com/jalv-go/jalv/internal/ports"
	"github.com/jalv-go/jalv/internal/process"
	"github.com/jalv-go/jalv/internal/remoteui"
	"github.com/jalv-go/jalv/internal/ringproto"
	"github.com/jalv-go/jalv/internal/state"
	"github.com/jalv-go/jalv/internal/worker"
	"github.com/jalv-go/jalv/pkg/ring"
)

// Jalv owns every component wired together for one run of the host.
type Jalv struct {
	opts   *config.Options
	world  lv2.World
	plugin lv2.Plugin
	table  *ports.Table
	set    *controls.Set

	uiToPlugin *ring.Ring
	pluginToUI *ring.Ring
	cycle      *process.Cycle

	normalWorker *worker.Worker
	stateWorker  *worker.Worker

	backend     backend.Backend
	pluginURI   string
	currentPreset *state.Preset
	presetDirs  []string
	tempDir     string

	log    *applog.Logger
	rtSink *applog.RTSink

	remote *remoteui.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu sync.Mutex
}

// ringForwarder implements process.UIForwarder by enqueueing a
// ringproto message onto a plugin->ui ring. Its methods run on the
// realtime thread, so they use ringproto's *Into variants, which encode
// into stack scratch rather than allocating.
type ringForwarder struct {
	r *ring.Ring
}

func (f *ringForwarder) WriteControlPortChange(port uint32, value float32) error {
	tx := f.r.BeginWrite()
	if err := ringproto.WriteControlPortChangeInto(f.r, &tx, port, value); err != nil {
		return err
	}
	return f.r.CommitWrite(tx)
}

func (f *ringForwarder) WriteEventTransfer(port, atomType uint32, body []byte) error {
	tx := f.r.BeginWrite()
	if err := ringproto.WriteEventTransferInto(f.r, &tx, port, atomType, body); err != nil {
		return err
	}
	return f.r.CommitWrite(tx)
}

func (f *ringForwarder) WriteLatencyChange(frames uint32) error {
	tx := f.r.BeginWrite()
	if err := ringproto.WriteLatencyChangeInto(f.r, &tx, frames); err != nil {
		return err
	}
	return f.r.CommitWrite(tx)
}

// ringCapacityFor returns the larger of the configured comm size and
// enough room for one EVENT_TRANSFER carrying a maxEvbuf-sized atom
// body plus its ringproto framing, so a configured -b below a plugin's
// own port sizes still can't undersize the ring.
func ringCapacityFor(commBytes int, maxEvbuf uint32) int {
	needed := int(maxEvbuf) + ringproto.HeaderSize + 12
	if needed > commBytes {
		return needed
	}
	return commBytes
}

// Open instantiates ports, controls, rings, worker threads and the
// audio backend for pluginURI, then activates the plugin and starts the
// backend, so the RT cycle is already running when Open returns.
func Open(parentCtx context.Context, pluginURI string, world lv2.World, plugin lv2.Plugin,
	drv backend.Backend, opts *config.Options, log *applog.Logger) (*Jalv, error) {

	table, err := ports.Setup(world, opts.Audio.MidiBufSize)
	if err != nil {
		return nil, err
	}

	set := controls.Build(world, opts.Audio.SampleRate, false, table.PrimaryInput)

	// Each ring must be able to hold at least one full-size message for
	// this plugin's largest event port, regardless of the configured
	// comm size.
	uiToPlugin := ring.New(ringCapacityFor(opts.Ring.CommBytes, table.MaxInputEvbuf))
	pluginToUI := ring.New(ringCapacityFor(opts.Ring.CommBytes, table.MaxOutputEvbuf))

	lock := &sync.Mutex{}
	normalWorker := worker.New(worker.Threaded, lock, opts.Ring.CommBytes)
	stateWorker := worker.New(worker.Inline, lock, opts.Ring.CommBytes)
	if w, ok := plugin.(lv2.Worker); ok {
		normalWorker.Attach(w)
		stateWorker.Attach(w)
	}
	normalWorker.Launch()

	rtSink := applog.NewRTSink(256)
	updatePeriod := config.UpdatePeriodFrames(opts.Audio.SampleRate, opts.UI.UpdateHz)

	cycle := process.New(plugin, table, uiToPlugin, &ringForwarder{pluginToUI}, normalWorker, stateWorker, updatePeriod, rtSink,
		opts.Audio.Channels, opts.Audio.BlockLength)
	if typeURID, body := world.PatchGetAtom(); body != nil {
		cycle.SetPatchGetAtom(typeURID, body)
	}

	ctx, cancel := context.WithCancel(parentCtx)

	j := &Jalv{
		opts:         opts,
		world:        world,
		plugin:       plugin,
		table:        table,
		set:          set,
		uiToPlugin:   uiToPlugin,
		pluginToUI:   pluginToUI,
		cycle:        cycle,
		normalWorker: normalWorker,
		stateWorker:  stateWorker,
		backend:      drv,
		pluginURI:    pluginURI,
		log:          log,
		rtSink:       rtSink,
		ctx:          ctx,
		cancel:       cancel,
	}

	if err := j.activateBackend(); err != nil {
		cancel()
		return nil, err
	}

	tempDir, err := state.TempDir(os.TempDir())
	if err != nil {
		j.Close()
		return nil, err
	}
	j.tempDir = tempDir

	for symbol, value := range opts.Control.InitialValues {
		if c := set.BySymbol(symbol); c != nil {
			if err := set.Set(uiToPlugin, c, controls.ValueFromFloat(c, value)); err != nil {
				log.Warning(fmt.Sprintf("initial value for %s rejected: %v", symbol, err))
			}
		}
	}

	return j, nil
}

func (j *Jalv) activateBackend() error {
	if err := j.backend.Allocate(); err != nil {
		return err
	}

	settings := &backend.Settings{
		SampleRate:  j.opts.Audio.SampleRate,
		BlockLength: j.opts.Audio.BlockLength,
		MidiBufSize: j.opts.Audio.MidiBufSize,
	}
	callbacks := backend.Callbacks{
		Process: j.cycle.Run,
		Shutdown: func() { j.cancel() },
	}
	if err := j.backend.Open(settings, callbacks, j.opts.Audio.ClientName, j.opts.Audio.ExactNameOnly); err != nil {
		j.backend.Free()
		return err
	}
	j.opts.Audio.SampleRate = settings.SampleRate
	j.opts.Audio.BlockLength = settings.BlockLength

	for i := range j.table.Ports {
		p := &j.table.Ports[i]
		if err := j.backend.ActivatePort(j.table, p.Index); err != nil {
			return err
		}
		switch p.Type {
		case lv2.PortControl:
			j.plugin.ConnectPort(p.Index, unsafe.Pointer(&j.table.Buffers[p.Index]))
		case lv2.PortEvent:
			j.plugin.ConnectPort(p.Index, unsafe.Pointer(p.Evbuf))
		}
	}

	j.plugin.Activate()
	return j.backend.Activate()
}

// Run starts the UI update-drain goroutine (and the remote UI relay,
// if configured) and returns immediately; the RT cycle itself is
// already running inside the backend's callback.
func (j *Jalv) Run() {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.uiUpdateLoop()
	}()

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		done := make(chan struct{})
		go func() { <-j.ctx.Done(); close(done) }()
		j.rtSink.Drain(j.log, done)
	}()

	if j.remote != nil {
		j.remote.Start()
	}
}

// Wait blocks until the host's context is cancelled (by Close, or by
// the backend's Shutdown callback).
func (j *Jalv) Wait() {
	<-j.ctx.Done()
}

// Close tears the host down: stops the backend, deactivates the
// plugin, stops workers, removes the temp dir, and waits for every
// goroutine to exit.
func (j *Jalv) Close() {
	j.cancel()

	if j.remote != nil {
		j.remote.Stop()
	}

	j.backend.Deactivate()
	j.plugin.Deactivate()
	j.backend.Close()
	j.backend.Free()

	j.normalWorker.Exit()
	j.stateWorker.Exit()
	j.normalWorker.Free()
	j.stateWorker.Free()

	j.table.Deactivate()

	if j.tempDir != "" {
		_ = os.RemoveAll(j.tempDir)
	}

	j.wg.Wait()
}

// uiUpdateLoop drains the plugin->ui ring, applying every message to
// local state and, when configured, mirroring it over the remote UI
// relay or printing it per -p/-d. Runs at ui_update_hz, clamped to
// [1, 60], so this non-realtime goroutine never busy-spins.
func (j *Jalv) uiUpdateLoop() {
	hz := config.ClampUIRate(j.opts.UI.UpdateHz)
	ticker := time.NewTicker(time.Duration(float64(time.Second) / hz))
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.drainPluginToUI()
		}
	}
}

func (j *Jalv) drainPluginToUI() {
	for j.pluginToUI.ReadSpace() >= ringproto.HeaderSize {
		header, err := ringproto.ReadHeader(j.pluginToUI)
		if err != nil {
			return
		}
		body, err := ringproto.ReadBody(j.pluginToUI, header.Size)
		if err != nil {
			return
		}
		j.handlePluginToUIMessage(header.Kind, body)
	}
}

func (j *Jalv) handlePluginToUIMessage(kind ringproto.Kind, body []byte) {
	switch kind {
	case ringproto.KindControlPortChange:
		change, err := ringproto.ReadControlPortChangeBody(body)
		if err != nil {
			return
		}
		if j.opts.UI.PrintUpdates {
			fmt.Printf("control %d = %v\n", change.Port, change.Value)
		}
		if j.remote != nil {
			_ = j.remote.Send(remoteui.Frame{Kind: kind, Port: change.Port, Value: change.Value})
		}
	case ringproto.KindEventTransfer:
		ev, err := ringproto.ReadEventTransferBody(body)
		if err != nil {
			return
		}
		if j.opts.UI.DumpAtoms {
			fmt.Printf("event port=%d type=%d size=%d\n", ev.Port, ev.AtomType, len(ev.AtomBody))
		}
		j.recognizePatchMessage(ev)
		if j.remote != nil {
			_ = j.remote.Send(remoteui.Frame{Kind: kind, Port: ev.Port, AtomType: ev.AtomType, AtomBody: remoteui.EncodeAtomBody(ev.AtomBody)})
		}
	case ringproto.KindLatencyChange:
		frames, err := ringproto.ReadLatencyChangeBody(body)
		if err != nil {
			return
		}
		j.backend.RecomputeLatencies()
		if j.remote != nil {
			_ = j.remote.Send(remoteui.Frame{Kind: kind, Frames: frames})
		}
	}
}

// recognizePatchMessage recognizes a plugin-emitted EVENT_TRANSFER as a
// patch:Set or patch:Put property change and reports it the same way a
// ControlPortChange is reported (print per -p, no state written back —
// the host has no cached current value to reconcile against, and
// writing one back into the plugin here would create a feedback loop).
func (j *Jalv) recognizePatchMessage(ev ringproto.EventTransfer) {
	switch ev.AtomType {
	case j.set.PatchSetTypeURID():
		ps, err := patch.GetSet(0, ev.AtomBody)
		if err != nil {
			return
		}
		c := j.set.ByPropertyURID(ps.PropertyURID)
		if c == nil {
			return
		}
		ps.Value = anyvalue.New(uint32(c.ValueType), ps.Value.Bytes())
		if j.opts.UI.PrintUpdates {
			fmt.Printf("property %s = %v\n", c.Symbol, ps.Value.Bytes())
		}
	case j.set.PatchPutTypeURID():
		if _, err := patch.GetPut(ev.AtomBody); err == nil && j.opts.UI.DumpAtoms {
			fmt.Printf("patch:Put port=%d size=%d\n", ev.Port, len(ev.AtomBody))
		}
	}
}

// ApplyRemoteFrame implements remoteui.Inbound: a control change made
// in the detached remote UI is applied the same way a console command
// would be.
func (j *Jalv) ApplyRemoteFrame(f remoteui.Frame) error {
	c := j.set.ByIndex(int(f.Port))
	if c == nil {
		return fmt.Errorf("host: remote frame references unknown control %d", f.Port)
	}
	return j.set.Set(j.uiToPlugin, c, controls.ValueFromFloat(c, float64(f.Value)))
}

// === console.Host ===

func (j *Jalv) Controls() *controls.Set { return j.set }

func (j *Jalv) SetControlByIndex(index int, value float64) error {
	c := j.set.ByIndex(index)
	if c == nil {
		return fmt.Errorf("host: no control at index %d", index)
	}
	return j.set.Set(j.uiToPlugin, c, controls.ValueFromFloat(c, value))
}

func (j *Jalv) SetControlBySymbol(symbol string, value float64) error {
	c := j.set.BySymbol(symbol)
	if c == nil {
		return fmt.Errorf("host: no control named %q", symbol)
	}
	return j.set.Set(j.uiToPlugin, c, controls.ValueFromFloat(c, value))
}

func (j *Jalv) LoadPresetURI(uri string) error {
	preset, err := state.Load(uri)
	if err != nil {
		return err
	}
	if err := state.Apply(preset, j.cycle, j.uiToPlugin, j.plugin, j.set, j.table, &ringForwarder{j.pluginToUI}); err != nil {
		return err
	}
	j.mu.Lock()
	j.currentPreset = preset
	j.mu.Unlock()
	return nil
}

func (j *Jalv) ListPresetURIs() []string {
	var uris []string
	for _, dir := range j.presetDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				uris = append(uris, filepath.Join(dir, e.Name()))
			}
		}
	}
	return uris
}

func (j *Jalv) Monitors() []string {
	names := []string{"audio backend"}
	if j.remote != nil {
		names = append(names, "remote ui")
	}
	return names
}

func (j *Jalv) Quit() { j.cancel() }

// SavePreset captures the current control values (and any plugin
// state:StateHost fields) and writes them to dir/<name>.preset.lv2/.
func (j *Jalv) SavePreset(dir, name string) error {
	var host lv2.StateHost
	if sh, ok := j.plugin.(lv2.StateHost); ok {
		host = sh
	}
	preset, err := state.Capture(name, j.set, j.table, host)
	if err != nil {
		return err
	}
	if err := state.SaveAs(dir, j.pluginURI, preset); err != nil {
		return err
	}
	j.mu.Lock()
	j.currentPreset = preset
	j.presetDirs = appendUnique(j.presetDirs, dir)
	j.mu.Unlock()
	return nil
}

func appendUnique(dirs []string, dir string) []string {
	for _, d := range dirs {
		if d == dir {
			return dirs
		}
	}
	return append(dirs, dir)
}

// EnableRemoteUI attaches a remote UI relay client; must be called
// before Run.
func (j *Jalv) EnableRemoteUI(settings remoteui.Settings) {
	j.remote = remoteui.New(j.ctx, settings, j, j.log)
}
