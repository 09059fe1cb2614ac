package main

import (
	"context"
	"testing"
	"time"

	"dictado/beep"
	"dictado/dictation"
	"dictado/recognizer"
)

func TestCueFor(t *testing.T) {
	idle := dictation.Snapshot{Model: dictation.ModelReady}
	listening := idle
	listening.Listening = true
	failed := idle
	failed.LastError = "recognition error: boom"
	denied := idle
	denied.LastError = "microphone permission denied"

	tests := []struct {
		name       string
		prev, next dictation.Snapshot
		want       beep.Cue
		ok         bool
	}{
		{"start", idle, listening, beep.Start, true},
		{"stop", listening, idle, beep.End, true},
		{"error stop", listening, failed, beep.Error, true},
		{"error while idle", idle, denied, beep.Error, true},
		{"same error again", failed, failed, 0, false},
		{"text change", idle, idle, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cueFor(tt.prev, tt.next)
			if ok != tt.ok || got != tt.want {
				t.Errorf("cueFor = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPlayCues(t *testing.T) {
	fake := recognizer.NewFake()
	ctl := dictation.New(dictation.Options{Engine: fake, ModelID: "es"})
	defer ctl.Close()

	played := make(chan beep.Cue, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, unsubscribe := ctl.Subscribe()
	defer unsubscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		playCues(ctx, updates, ctl.Snapshot(), func(c beep.Cue) { played <- c })
	}()

	ctl.LoadModel()
	deadline := time.Now().Add(3 * time.Second)
	for ctl.Snapshot().Model != dictation.ModelReady {
		if time.Now().After(deadline) {
			t.Fatal("model never loaded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	ctl.StartListening()
	expectCue(t, played, beep.Start)
	ctl.StopListening()
	expectCue(t, played, beep.End)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("playCues did not return after cancel")
	}
}

func expectCue(t *testing.T, played <-chan beep.Cue, want beep.Cue) {
	t.Helper()
	select {
	case got := <-played:
		if got != want {
			t.Fatalf("cue = %v, want %v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no cue, want %v", want)
	}
}
