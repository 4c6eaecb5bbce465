package settings

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/kolvoice/kol-core/core/vad"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.json"))

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	if !reflect.DeepEqual(loaded, Defaults()) {
		t.Errorf("expected defaults, got %+v", loaded)
	}
}

func TestSavePartialKeepsDefaults(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.json"))

	saved, err := store.Save(Settings{Language: "en"})
	if err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}
	if saved.Language != "en" {
		t.Errorf("expected language %q, got %q", "en", saved.Language)
	}
	if saved.VoiceID != Defaults().VoiceID {
		t.Errorf("expected default voice, got %q", saved.VoiceID)
	}
	if saved.VAD.PositiveSpeechThreshold != vad.DefaultConfig().PositiveSpeechThreshold {
		t.Errorf("expected default VAD thresholds, got %+v", saved.VAD)
	}
}

func TestSavedSettingsSurviveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewStore(path)

	if _, err := store.Save(Settings{ModelID: "gpt-4o", VAD: vad.Config{MinSpeechMs: 250}}); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}

	loaded, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("failed to reload settings: %v", err)
	}
	if loaded.ModelID != "gpt-4o" {
		t.Errorf("expected model %q, got %q", "gpt-4o", loaded.ModelID)
	}
	if loaded.VAD.MinSpeechMs != 250 {
		t.Errorf("expected min speech 250ms, got %d", loaded.VAD.MinSpeechMs)
	}
	if loaded.VAD.RedemptionMs != vad.DefaultConfig().RedemptionMs {
		t.Errorf("expected untouched VAD fields to keep defaults, got %+v", loaded.VAD)
	}
}

func TestSaveRejectsInvertedThresholds(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.json"))

	_, err := store.Save(Settings{VAD: vad.Config{
		PositiveSpeechThreshold: 0.2,
		NegativeSpeechThreshold: 0.6,
	}})
	if err == nil {
		t.Fatal("expected inverted thresholds to be rejected")
	}
	if _, statErr := os.Stat(store.path); !os.IsNotExist(statErr) {
		t.Error("expected rejected settings not to be written")
	}
}

func TestSaveCanDisableWakeWord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewStore(path)

	enabled := true
	if _, err := store.Save(Settings{WakeWord: WakeWordSettings{Enabled: &enabled}}); err != nil {
		t.Fatalf("failed to enable wake word: %v", err)
	}

	disabled := false
	saved, err := store.Save(Settings{WakeWord: WakeWordSettings{Enabled: &disabled}})
	if err != nil {
		t.Fatalf("failed to disable wake word: %v", err)
	}
	if saved.WakeWordConfig().Enabled {
		t.Error("expected wake word disabled after saving enabled=false")
	}

	loaded, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("failed to reload settings: %v", err)
	}
	if loaded.WakeWordConfig().Enabled {
		t.Error("expected the disable to survive a reload")
	}
	if len(loaded.WakeWordConfig().Phrases) == 0 {
		t.Error("expected default phrases to be kept through the toggle")
	}
}

func TestMergeWakeWordLeavesUnsetEnabledAlone(t *testing.T) {
	enabled := true
	base := Defaults()
	base.WakeWord.Enabled = &enabled

	merged := Merge(base, Settings{WakeWord: WakeWordSettings{Phrases: []string{"computer"}}})
	if !merged.WakeWordConfig().Enabled {
		t.Error("expected a phrases-only partial to keep wake word enabled")
	}
	if phrases := merged.WakeWordConfig().Phrases; len(phrases) != 1 || phrases[0] != "computer" {
		t.Errorf("expected replaced phrases, got %v", phrases)
	}
}

func TestMergePartialVADFields(t *testing.T) {
	merged := Merge(Defaults(), Settings{VAD: vad.Config{PreSpeechPadMs: 120}})
	if merged.VAD.PreSpeechPadMs != 120 {
		t.Errorf("expected pre-speech pad 120ms, got %d", merged.VAD.PreSpeechPadMs)
	}
	if merged.VAD.PositiveSpeechThreshold != Defaults().VAD.PositiveSpeechThreshold {
		t.Errorf("expected default positive threshold, got %v", merged.VAD.PositiveSpeechThreshold)
	}
}
