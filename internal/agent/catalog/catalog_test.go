package catalog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	script, ok := r.ByKind(KindScriptPlanner)
	if !ok || script.ID != "69a3270589a7585c80443946" {
		t.Fatalf("unexpected script planner: %+v", script)
	}
	byID, ok := r.ByID("69a32706e7d556f541c6d6e5")
	if !ok || byID.Kind != KindHookOptimizer {
		t.Fatalf("unexpected lookup by id: %+v", byID)
	}
	if a, ok := r.Resolve("trend-topic"); !ok || a.ID != "69a327053dad68d04a05e74f" {
		t.Fatalf("resolve by kind failed: %+v", a)
	}
	if _, ok := r.Resolve("nope"); ok {
		t.Fatal("expected unknown ref to miss")
	}

	var kinds []Kind
	for _, a := range r.List() {
		kinds = append(kinds, a.Kind)
	}
	if diff := cmp.Diff(Kinds, kinds); diff != "" {
		t.Fatalf("list order mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRegistryOverridesIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	content := `
agents:
  - kind: script-planner
    id: staging-script
  - kind: hook-optimizer
    id: staging-hooks
    name: Hook Lab
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	script, _ := r.ByKind(KindScriptPlanner)
	if script.ID != "staging-script" || script.Name != "Script & Scene Planner" {
		t.Fatalf("unexpected override: %+v", script)
	}
	if _, ok := r.ByID("69a3270589a7585c80443946"); ok {
		t.Fatal("replaced id should no longer resolve")
	}
	hooks, _ := r.ByKind(KindHookOptimizer)
	if hooks.Name != "Hook Lab" {
		t.Fatalf("expected name override, got %q", hooks.Name)
	}
	if len(r.List()) != 4 {
		t.Fatalf("expected 4 agents, got %d", len(r.List()))
	}
}

func TestLoadRegistryRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"unknown kind":  "agents:\n  - kind: editor\n    id: x\n",
		"missing id":    "agents:\n  - kind: trend-topic\n",
		"duplicated id": "agents:\n  - kind: trend-topic\n    id: 69a3270589a7585c80443946\n",
		"not yaml":      "agents: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "agents.yaml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := LoadRegistry(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if r, err := LoadRegistry(""); err != nil || len(r.List()) != 4 {
		t.Fatalf("empty path should yield defaults: %v", err)
	}
}

func TestDecodeScript(t *testing.T) {
	raw := json.RawMessage(`{"result":{
		"hook_line":"Stop scrolling",
		"total_duration":45,
		"music_mood":"upbeat",
		"pacing_notes":"fast cuts",
		"scenes":[
			{"scene_number":1,"visual_type":"b-roll","visual_description":"desk","voiceover_text":"Hi","duration_seconds":5,"transition":"cut"},
			{"visual_type":"talking head","duration_seconds":"7.5"}
		]}}`)

	payload, err := Decode(KindScriptPlanner, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := &Script{
		HookLine:      "Stop scrolling",
		TotalDuration: 45,
		MusicMood:     "upbeat",
		PacingNotes:   "fast cuts",
		Scenes: []Scene{
			{SceneNumber: 1, VisualType: "b-roll", VisualDescription: "desk", VoiceoverText: "Hi", DurationSeconds: 5, Transition: "cut"},
			{SceneNumber: 2, VisualType: "talking head", DurationSeconds: 7.5},
		},
	}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Fatalf("script mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeIsPermissive(t *testing.T) {
	payload, err := Decode(KindCaptionHashtags, json.RawMessage(`{"result":{"platforms":"oops"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	captions := payload.(*Captions)
	if captions.Platforms == nil || len(captions.Platforms) != 0 {
		t.Fatalf("expected empty platform list, got %#v", captions.Platforms)
	}

	payload, err = Decode(KindHookOptimizer, json.RawMessage(`{"result":{"performance_summary":42}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	opt := payload.(*Optimization)
	if opt.PerformanceSummary != "42" || len(opt.ImprovedHooks) != 0 || opt.NextVideoSuggestions == nil {
		t.Fatalf("unexpected optimization: %#v", opt)
	}
}

func TestDecodeRepairsStringResult(t *testing.T) {
	raw := json.RawMessage(`{"result":"{\"niche\":\"AI/Tech\",\"topics\":[{\"title\":\"Agents\",\"trend_velocity\":\"Exploding\",\"interest_level\":9.5}"}`)

	payload, err := Decode(KindTrendTopic, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	trends := payload.(*Trends)
	if trends.Niche != "AI/Tech" || len(trends.Topics) != 1 {
		t.Fatalf("unexpected trends: %#v", trends)
	}
	topic := trends.Topics[0]
	if topic.Velocity() != VelocityHot || topic.InterestPercent() != 95 {
		t.Fatalf("unexpected topic classification: %v %d", topic.Velocity(), topic.InterestPercent())
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode(KindScriptPlanner, json.RawMessage(`{"status":"ok"}`)); !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
	if _, err := Decode(KindScriptPlanner, json.RawMessage(`{"result":null}`)); !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult for null, got %v", err)
	}
	if _, err := Decode(KindScriptPlanner, json.RawMessage(`[1,2]`)); err == nil {
		t.Fatal("expected error for non-object reply")
	}
	if _, err := Decode(Kind("editor"), json.RawMessage(`{"result":{}}`)); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestDecodeNonObjectResultIsEmptyPayload(t *testing.T) {
	cases := map[string]string{
		"prose":  `{"result":"Here is your script: open on a close-up"}`,
		"array":  `{"result":[{"hook_line":"x"}]}`,
		"number": `{"result":42}`,
		"true":   `{"result":true}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			payload, err := Decode(KindScriptPlanner, json.RawMessage(raw))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			want := &Script{Scenes: []Scene{}}
			if diff := cmp.Diff(want, payload); diff != "" {
				t.Fatalf("script mismatch (-want +got):\n%s", diff)
			}
		})
	}

	payload, err := Decode(KindCaptionHashtags, json.RawMessage(`{"result":["a","b"]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if captions := payload.(*Captions); captions.Platforms == nil || len(captions.Platforms) != 0 {
		t.Fatalf("expected empty platform list, got %#v", captions.Platforms)
	}
}

func TestDecodeFalsyResultIsEmpty(t *testing.T) {
	for _, raw := range []string{`{"result":""}`, `{"result":"  "}`, `{"result":false}`, `{"result":0}`} {
		if _, err := Decode(KindTrendTopic, json.RawMessage(raw)); !errors.Is(err, ErrEmptyResult) {
			t.Fatalf("%s: expected ErrEmptyResult, got %v", raw, err)
		}
	}
}

func TestRegistryConflictKeepsIndexes(t *testing.T) {
	r := DefaultRegistry()
	script, _ := r.ByKind(KindScriptPlanner)
	trend, _ := r.ByKind(KindTrendTopic)

	if err := r.put(Agent{Kind: KindTrendTopic, ID: script.ID}); err == nil {
		t.Fatal("expected conflict error")
	}
	got, ok := r.ByID(trend.ID)
	if !ok || got.Kind != KindTrendTopic {
		t.Fatalf("trend id lost after failed put: %#v %v", got, ok)
	}
	if got, _ := r.ByKind(KindTrendTopic); got.ID != trend.ID {
		t.Fatalf("trend kind rebound to %s", got.ID)
	}
}

func TestRegistryLabel(t *testing.T) {
	r := DefaultRegistry()
	script, _ := r.ByKind(KindScriptPlanner)
	if got := r.Label(script.ID); got != string(KindScriptPlanner) {
		t.Fatalf("label = %q", got)
	}
	if got := r.Label("made-up-id"); got != "" {
		t.Fatalf("unknown id label = %q", got)
	}
}

func TestClassifyVelocity(t *testing.T) {
	cases := map[string]VelocityLevel{
		"HOT right now":  VelocityHot,
		"going viral":    VelocityHot,
		"Exploding":      VelocityHot,
		"Rising fast":    VelocityRising,
		"steady growing": VelocityRising,
		"stable":         VelocitySteady,
		"":               VelocitySteady,
	}
	for in, want := range cases {
		if got := ClassifyVelocity(in); got != want {
			t.Errorf("ClassifyVelocity(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestInterestPercentClamps(t *testing.T) {
	cases := map[float64]int{-3: 0, 0: 0, 4.2: 42, 10: 100, 14: 100}
	for in, want := range cases {
		if got := InterestPercent(in); got != want {
			t.Errorf("InterestPercent(%v) = %d, want %d", in, got, want)
		}
	}
}
