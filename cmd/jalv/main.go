// Command jalv is the CLI entrypoint: flag parsing, signal handling
// and orchestration wiring: a signal channel raced against a
// context-done channel, then a graceful shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/jalv-go/jalv/internal/applog"
	"github.com/jalv-go/jalv/internal/backend/portaudio"
	"github.com/jalv-go/jalv/internal/config"
	"github.com/jalv-go/jalv/internal/console"
	"github.com/jalv-go/jalv/internal/host"
	"github.com/jalv-go/jalv/internal/jalverr"
	"github.com/jalv-go/jalv/internal/lv2"
	"github.com/jalv-go/jalv/internal/remoteui"
)

// version is overridable at link time (-ldflags "-X main.version=...").
var version = "dev"

// earlyExitCode marks "-h/-V exited early, successfully" and must
// never leak to the OS as-is; it is always translated to os.Exit(0)
// before the process actually exits.
const earlyExitCode = -431

// loadPlugin resolves a plugin URI to its RDF world and instantiated
// binary. The LV2 world, URID mapper and plugin binary are external
// collaborators out of scope for this host core; a real
// distribution links in a concrete implementation here. The default
// reports a clear instantiation failure rather than silently doing
// nothing, so that a build without a loader wired in fails loudly at
// the one seam meant to be replaced.
var loadPlugin = func(uri string) (lv2.World, lv2.Plugin, error) {
	return nil, nil, fmt.Errorf("%w: no LV2 loader configured for %s", jalverr.ErrInstantiationFailed, uri)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("jalv", pflag.ContinueOnError)

	ringBytes := flags.IntP("buffer-size", "b", 4096, "communication ring buffer size in bytes")
	controlInit := flags.StringArrayP("control", "c", nil, "initial control value SYM=VAL, repeatable")
	dumpAtoms := flags.BoolP("dump", "d", false, "dump plugin<->UI atoms to stdout")
	help := flags.BoolP("help", "h", false, "show this help and exit")
	showVersion := flags.BoolP("version", "V", false, "show version and exit")
	nonInteractive := flags.BoolP("non-interactive", "i", false, "disable the interactive console")
	clientName := flags.StringP("name", "n", "jalv", "backend client name")
	printUpdates := flags.BoolP("print", "p", false, "print control-output changes to stdout")
	showUI := flags.BoolP("show-ui", "s", false, "request the plugin's own UI if available")
	trace := flags.BoolP("trace", "t", false, "enable trace-level logging")
	forceUIURI := flags.StringP("ui-uri", "U", "", "force a specific UI URI")
	exactNameOnly := flags.BoolP("exact-name", "x", false, "exit if the requested client name is taken")
	remoteAddr := flags.String("remote-ui", "", "websocket URL of a detached remote UI process")

	flags.SetOutput(os.Stderr)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: jalv [flags] <plugin-uri | preset-uri | state-path>")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return 1
	}

	if *help {
		flags.Usage()
		return translateExit(earlyExitCode)
	}
	if *showVersion {
		fmt.Println("jalv", version)
		return translateExit(earlyExitCode)
	}

	positional := flags.Args()
	if len(positional) < 1 {
		flags.Usage()
		return 1
	}
	target := positional[0]

	opts := config.Default()
	opts.Ring.CommBytes = *ringBytes
	opts.Audio.ClientName = *clientName
	opts.Audio.ExactNameOnly = *exactNameOnly
	opts.UI.PrintUpdates = *printUpdates
	opts.UI.DumpAtoms = *dumpAtoms
	opts.UI.ShowUI = *showUI
	opts.UI.ForceUIURI = *forceUIURI
	opts.Control.NonInteractive = *nonInteractive
	opts.Control.TraceLog = *trace
	opts.Control.InitialValues = parseControlValues(*controlInit)

	log := applog.New(*trace)

	world, plugin, err := loadPlugin(target)
	if err != nil {
		log.Error(fmt.Sprintf("load plugin: %v", err))
		return 1
	}

	drv := portaudio.New(opts.Audio.Channels)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j, err := host.Open(ctx, target, world, plugin, drv, opts, log)
	if err != nil {
		log.Error(fmt.Sprintf("open: %v", err))
		return 1
	}

	if *remoteAddr != "" {
		j.EnableRemoteUI(remoteui.Settings{
			URL:            *remoteAddr,
			ReconnectDelay: config.DefaultReconnectDelay,
			WriteTimeout:   5 * time.Second,
			ReadTimeout:    30 * time.Second,
			PingInterval:   15 * time.Second,
		})
	}

	j.Run()

	var monitor *console.Monitor
	if !opts.Control.NonInteractive {
		monitor = console.New(j, os.Stdin, os.Stdout)
		go monitor.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	doneCh := make(chan struct{})
	go func() {
		j.Wait()
		close(doneCh)
	}()

	select {
	case sig := <-sigCh:
		log.Note(fmt.Sprintf("received signal: %v", sig))
	case <-doneCh:
		log.Note("host exited on its own")
	}

	j.Close()
	return 0
}

// parseControlValues parses repeated "SYM=VAL" arguments from -c into
// a symbol->value map, silently skipping malformed entries.
func parseControlValues(entries []string) map[string]float64 {
	values := map[string]float64{}
	for _, entry := range entries {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		var v float64
		if _, err := fmt.Sscanf(parts[1], "%g", &v); err != nil {
			continue
		}
		values[parts[0]] = v
	}
	return values
}

// translateExit converts the internal earlyExitCode sentinel to the
// real process exit status (0), so -431 never leaks to the OS as-is.
func translateExit(code int) int {
	if code == earlyExitCode {
		return 0
	}
	return code
}
