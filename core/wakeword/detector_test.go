package wakeword

import "testing"

func TestMatchExtractsCommand(t *testing.T) {
	command, matched := Match("Hey Claude what time is it", DefaultConfig().Phrases)
	if !matched {
		t.Fatal("expected wake phrase to match")
	}
	if command != "what time is it" {
		t.Errorf("expected command %q, got %q", "what time is it", command)
	}
}

func TestMatchStripsPunctuationAfterPhrase(t *testing.T) {
	command, matched := Match("Okay Claude, turn on the lights.", DefaultConfig().Phrases)
	if !matched {
		t.Fatal("expected wake phrase to match")
	}
	if command != "turn on the lights." {
		t.Errorf("unexpected command %q", command)
	}
}

func TestMatchPhraseOnly(t *testing.T) {
	command, matched := Match("hey claude", DefaultConfig().Phrases)
	if !matched {
		t.Fatal("expected wake phrase to match")
	}
	if command != "" {
		t.Errorf("expected empty command, got %q", command)
	}
}

func TestMatchRespectsPhraseOrder(t *testing.T) {
	command, matched := Match("ok computer play music", []string{"hey computer", "ok computer"})
	if !matched {
		t.Fatal("expected second phrase to match")
	}
	if command != "play music" {
		t.Errorf("unexpected command %q", command)
	}
}

func TestMatchNoPhrase(t *testing.T) {
	if _, matched := Match("what time is it", DefaultConfig().Phrases); matched {
		t.Error("expected no match without a wake phrase")
	}
}

func TestFeedDisabledPassesThrough(t *testing.T) {
	detector, err := NewDetector(Config{Enabled: false})
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}

	command, act := detector.Feed("what time is it")
	if !act {
		t.Fatal("expected disabled detector to pass transcripts through")
	}
	if command != "what time is it" {
		t.Errorf("unexpected command %q", command)
	}
}

func TestFeedIgnoresUnaddressedUtterance(t *testing.T) {
	var ignored string
	detector, err := NewDetector(Config{Enabled: true, Phrases: DefaultConfig().Phrases},
		WithIgnoredCallback(func(transcript string) { ignored = transcript }),
	)
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}

	if _, act := detector.Feed("just talking to myself"); act {
		t.Error("expected utterance without wake phrase to be ignored")
	}
	if ignored != "just talking to myself" {
		t.Errorf("expected ignored callback with transcript, got %q", ignored)
	}
}

func TestFeedWakeCallback(t *testing.T) {
	var woke string
	detector, err := NewDetector(Config{Enabled: true, Phrases: DefaultConfig().Phrases},
		WithWakeCallback(func(command string) { woke = command }),
	)
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}

	command, act := detector.Feed("hi claude open the door")
	if !act || command != "open the door" {
		t.Fatalf("expected command %q, got %q (act=%v)", "open the door", command, act)
	}
	if woke != "open the door" {
		t.Errorf("expected wake callback with command, got %q", woke)
	}
}

func TestValidateEnabledWithoutPhrases(t *testing.T) {
	if err := (Config{Enabled: true}).Validate(); err == nil {
		t.Error("expected enabled config without phrases to be invalid")
	}
}
