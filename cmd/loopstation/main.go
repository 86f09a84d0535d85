// Command loopstation is a live looper: it records takes from an audio
// interface while keys or MIDI controls are pressed and plays them back in
// sync with the first take.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/justyntemme/loopstation/pkg/device"
	"github.com/justyntemme/loopstation/pkg/framework/debug"
	"github.com/justyntemme/loopstation/pkg/input"
	"github.com/justyntemme/loopstation/pkg/jam"
	"github.com/justyntemme/loopstation/pkg/midi"
	"github.com/justyntemme/loopstation/pkg/scene"
	"github.com/justyntemme/loopstation/pkg/trigger"
)

const (
	commitInterval = 50 * time.Millisecond
	statusInterval = 10 * time.Second
)

// Keys handled by the application when no trigger consumes them.
const (
	keyQuit     = 'q'
	keyCtrlC    = 0x03
	keySave     = 's'
	keyClear    = 'c'
	keyMute     = 'm'
	keyStatus   = '?'
	keyLouder   = '+'
	keyQuieter  = '-'
	muteGroupID = 1
	levelStepDb = 3
)

type options struct {
	rig      string
	jam      string
	save     string
	backend  string
	level    string
	logFile  string
	midiPort string
	keys     bool
	latch    string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("loopstation", flag.ContinueOnError)
	fs.StringVar(&o.rig, "rig", "", "rig file with audio settings and trigger bindings")
	fs.StringVar(&o.jam, "jam", "", "jam file to load at startup")
	fs.StringVar(&o.save, "save", "", "jam file written by the save key and on exit")
	fs.StringVar(&o.backend, "device", "portaudio", "audio backend: "+strings.Join(device.Backends, ", "))
	fs.StringVar(&o.level, "log", "info", "log level: debug, info, warn, error or off")
	fs.StringVar(&o.logFile, "logfile", "", "append logs to this file instead of stderr")
	fs.StringVar(&o.midiPort, "midi", "", "MIDI input port to listen on, matched by substring")
	fs.BoolVar(&o.keys, "keys", true, "read triggers from the terminal keyboard")
	fs.StringVar(&o.latch, "latch", string(rune(jam.DefaultDitchKey)), "keys that stay down until pressed again")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.save == "" && o.jam != "" {
		o.save = o.jam
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "loopstation: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	level, err := debug.ParseLevel(opts.level)
	if err != nil {
		return err
	}
	log := debug.Default()
	if opts.logFile != "" {
		fileLog, closer, err := debug.NewFileLogger(opts.logFile, "", debug.DefaultFlags)
		if err != nil {
			return err
		}
		defer closer.Close()
		log = fileLog
	}
	log.SetLevel(level)

	rig := jam.DefaultRig()
	if opts.rig != "" {
		if rig, err = jam.LoadRig(opts.rig, log.Named("rig")); err != nil {
			return err
		}
	}
	open, err := device.ForBackend(opts.backend)
	if err != nil {
		return err
	}

	sc, err := buildScene(rig, log)
	if err != nil {
		return err
	}
	if opts.jam != "" {
		if err := sc.Load(opts.jam); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			log.Info("%s does not exist yet, starting empty", opts.jam)
		}
	}
	sc.InitAudio(open)
	defer sc.CloseAudio()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, quit := context.WithCancel(ctx)
	defer quit()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sc.RunJobs(ctx) })
	g.Go(func() error { return commitLoop(ctx, sc, log) })

	if opts.midiPort != "" {
		listener, err := midi.Open(opts.midiPort, log.Named("midi"))
		if err != nil {
			log.Error("%v", err)
		} else {
			defer listener.Close()
			g.Go(func() error {
				return listener.Run(ctx, func(ev trigger.Event) { sc.OnAction(scene.InputEvent(ev)) })
			})
		}
	}

	if opts.keys {
		kb, err := input.Open(os.Stdin)
		switch {
		case errors.Is(err, input.ErrNotTerminal):
			log.Info("stdin is not a terminal, keyboard triggers disabled")
		case err != nil:
			return err
		default:
			defer kb.Close()
			if opts.logFile == "" {
				log.SetOutput(crlf{os.Stderr})
			}
			keys := &keyHandler{
				scene:  sc,
				mapper: input.NewMapper([]byte(opts.latch)...),
				save:   opts.save,
				quit:   quit,
				log:    log,
			}
			g.Go(func() error { return kb.Run(ctx, keys.onKey) })
		}
	}

	log.Info("loopstation running with %d stations", sc.NumStations())
	err = g.Wait()

	if opts.save != "" && sc.Status().Unsaved {
		if serr := sc.Save(opts.save); serr != nil {
			log.Error("%v", serr)
			if err == nil {
				err = serr
			}
		}
	}
	return err
}

// buildScene creates one station per rig trigger, named after it.
func buildScene(rig *jam.Rig, log *debug.Logger) (*scene.Scene, error) {
	sc := scene.New(scene.Config{
		Name: rig.Name,
		Audio: device.Config{
			DeviceName: rig.Audio.DeviceName,
			SampleRate: rig.Audio.SampleRate,
			BlockSize:  rig.Audio.BufferSize,
			NumInputs:  rig.Audio.NumChannelsIn,
			NumOutputs: rig.Audio.NumChannelsOut,
		},
		Latency:        rig.Audio.Latency,
		FadeMs:         rig.FadeMs,
		MaxLoopSeconds: rig.MaxLoopS,
	}, log.Named("scene"))

	for _, rt := range rig.Triggers {
		trig, err := rt.Build()
		if err != nil {
			log.Warn("rig %q: skipping trigger %q: %v", rig.Name, rt.Name, err)
			continue
		}
		sc.AddStation(rt.Name, trig)
	}
	if sc.NumStations() == 0 {
		return nil, errors.Errorf("rig %q has no usable triggers", rig.Name)
	}
	return sc, nil
}

// commitLoop turns loop changes into jobs and logs the callback load now and
// then.
func commitLoop(ctx context.Context, sc *scene.Scene, log *debug.Logger) error {
	commit := time.NewTicker(commitInterval)
	defer commit.Stop()
	status := time.NewTicker(statusInterval)
	defer status.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-commit.C:
			sc.CommitChanges()
		case <-status.C:
			if st := sc.Status(); st.HasDevice {
				log.Debug("callback %s", st.Callback)
			}
		}
	}
}

type keyHandler struct {
	scene  *scene.Scene
	mapper *input.Mapper
	save   string
	muted  bool
	quit   context.CancelFunc
	log    *debug.Logger
}

func (k *keyHandler) onKey(b byte) {
	eaten := false
	for _, ev := range k.mapper.Map(b) {
		if k.scene.OnAction(scene.InputEvent(ev)).IsEaten {
			eaten = true
		}
	}
	if eaten {
		return
	}

	switch b {
	case keyQuit, keyCtrlC:
		for _, ev := range k.mapper.Release() {
			k.scene.OnAction(scene.InputEvent(ev))
		}
		k.quit()
	case keySave:
		if k.save == "" {
			k.log.Warn("no -save file given")
			return
		}
		if err := k.scene.Save(k.save); err != nil {
			k.log.Error("%v", err)
		}
	case keyClear:
		k.scene.Clear()
		k.log.Info("cleared")
	case keyMute:
		k.muted = !k.muted
		k.scene.SetMuteGroup(1<<(muteGroupID-1), k.muted)
	case keyStatus:
		k.log.Info("%s", formatStatus(k.scene.Status(), k.save))
	case keyLouder:
		k.nudgeNewest(levelStepDb)
	case keyQuieter:
		k.nudgeNewest(-levelStepDb)
	}
}

// nudgeNewest changes the level of the newest take of the first station.
func (k *keyHandler) nudgeNewest(db float32) {
	st := k.scene.Status()
	if len(st.Stations) == 0 || len(st.Stations[0].Takes) == 0 {
		return
	}
	takes := st.Stations[0].Takes
	take := takes[len(takes)-1]
	if level, ok := k.scene.AdjustTakeLevel(0, take.ID, db); ok {
		k.log.Info("%s at %.1f dB", take.Name, level)
	}
}

func formatStatus(st scene.Status, save string) string {
	var b strings.Builder
	if st.HasDevice {
		fmt.Fprintf(&b, "%s, %s", st.Device.Name, st.Callback)
	} else {
		b.WriteString("no audio device")
	}
	if st.MasterLength > 0 {
		fmt.Fprintf(&b, "; master %d at %d", st.MasterLength, st.Phase)
	}
	for _, ss := range st.Stations {
		fmt.Fprintf(&b, "\n  %s:", ss.Name)
		for _, t := range ss.Triggers {
			fmt.Fprintf(&b, " [%s %v]", t.Name, t.State)
		}
		for _, t := range ss.Takes {
			fmt.Fprintf(&b, " %s=%v/%d %.1fdB", t.Name, t.State, t.Length, t.LevelDb)
			if t.Muted {
				b.WriteString("(muted)")
			}
		}
	}
	if st.Unsaved && save != "" {
		fmt.Fprintf(&b, "\n  unsaved, 's' writes %s", filepath.Base(save))
	}
	return b.String()
}

// crlf adds carriage returns for a terminal in raw mode.
type crlf struct{ w io.Writer }

func (c crlf) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
