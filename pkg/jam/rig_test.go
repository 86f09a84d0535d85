package jam

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/justyntemme/loopstation/pkg/trigger"
)

func TestDefaultRigBuilds(t *testing.T) {
	r := DefaultRig()
	if len(r.Triggers) != 1 {
		t.Fatalf("Expected one default trigger, got %d", len(r.Triggers))
	}
	trig, err := r.Triggers[0].Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	tests := []struct {
		name string
		ev   trigger.Event
	}{
		{"key 1", trigger.Event{Source: trigger.SourceKey, Value: '1', State: trigger.StateDown}},
		{"key 2 release", trigger.Event{Source: trigger.SourceKey, Value: '2', State: trigger.StateUp}},
		{"note 60", trigger.Event{Source: trigger.SourceMidiNote, Value: 60, State: trigger.StateDown}},
		{"note 61", trigger.Event{Source: trigger.SourceMidiNote, Value: 61, State: trigger.StateDown}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !trig.Matches(tt.ev) {
				t.Errorf("Default trigger should match %+v", tt.ev)
			}
		})
	}
	if trig.Matches(trigger.Event{Source: trigger.SourceMidiCC, Value: 60, State: trigger.StateDown}) {
		t.Error("A CC should not match a note binding")
	}
	if trig.Debounce().Milliseconds() != 20 {
		t.Errorf("Expected 20ms debounce, got %v", trig.Debounce())
	}
}

func TestTriggerBuild(t *testing.T) {
	key := func(v int) Signature { return Signature{Source: "key", Value: v} }
	release := key(49)

	tests := []struct {
		name        string
		trig        Trigger
		wantErr     bool
		wantRelease bool
	}{
		{"press release", Trigger{Name: "t", Activate: []Binding{{Down: key(49), Release: &release}}}, false, true},
		{"momentary", Trigger{Name: "t", Activate: []Binding{{Down: key(49)}}}, false, false},
		{"no name", Trigger{Activate: []Binding{{Down: key(49)}}}, true, false},
		{"no activate", Trigger{Name: "t"}, true, false},
		{"bad source", Trigger{Name: "t", Activate: []Binding{{Down: Signature{Source: "pedal"}}}}, true, false},
		{"bad channel", Trigger{Name: "t", Activate: []Binding{{Down: key(49)}}, InputChannels: []int{-2}}, true, false},
		{"bad debounce", Trigger{Name: "t", Activate: []Binding{{Down: key(49)}}, DebounceMs: -1}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig, err := tt.trig.Build()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Build() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			b := trig.ActivateBindings()[0]
			if b.HasRelease != tt.wantRelease {
				t.Errorf("HasRelease = %v, want %v", b.HasRelease, tt.wantRelease)
			}
			if got := trig.InputChannels(); len(got) != 1 || got[0] != 0 {
				t.Errorf("Expected input channel 0 by default, got %v", got)
			}
		})
	}
}

func TestParseRig(t *testing.T) {
	log, out := quietLogger()
	data := `{
	  "name": "home",
	  "audio": {"deviceName": "card", "bufferSize": 128, "numChannelsIn": 2},
	  "triggers": [
	    {"name": "left", "activate": [{"down": {"source": "midicc", "value": 64}}], "inputChannels": [0]},
	    {"name": "broken", "activate": [{"down": {"source": "theremin", "value": 1}}]},
	    {"name": 7}
	  ]
	}`
	r, err := ParseRig([]byte(data), log)
	if err != nil {
		t.Fatalf("ParseRig failed: %v", err)
	}

	if r.Audio.DeviceName != "card" || r.Audio.BufferSize != 128 || r.Audio.NumChannelsIn != 2 {
		t.Errorf("Unexpected audio %+v", r.Audio)
	}
	if r.Audio.SampleRate != 48000 || r.Audio.NumChannelsOut != 2 {
		t.Errorf("Missing audio settings should default, got %+v", r.Audio)
	}
	if len(r.Triggers) != 1 || r.Triggers[0].Name != "left" {
		t.Fatalf("Expected only the valid trigger, got %+v", r.Triggers)
	}
	if _, ok := r.Trigger("left"); !ok {
		t.Error("Trigger lookup by name failed")
	}
	if strings.Count(out.String(), "skipping") != 2 {
		t.Errorf("Expected 2 skip warnings, got:\n%s", out.String())
	}
}

func TestRigSaveAndLoad(t *testing.T) {
	log, _ := quietLogger()
	path := filepath.Join(t.TempDir(), "rig.json")
	if err := DefaultRig().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	r, err := LoadRig(path, log)
	if err != nil {
		t.Fatalf("LoadRig failed: %v", err)
	}
	if len(r.Triggers) != 1 || len(r.Triggers[0].Activate) != 2 {
		t.Errorf("Expected the default trigger back, got %+v", r.Triggers)
	}
	if r.FadeMs != 5 || r.MaxLoopS != 120 {
		t.Errorf("Expected loop settings back, got fade %v max %v", r.FadeMs, r.MaxLoopS)
	}
}
