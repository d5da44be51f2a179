package ai

import "testing"

func TestParseIntent(t *testing.T) {
	tests := []struct {
		in     string
		want   Intent
		wantOK bool
	}{
		{"ADD_TASK", IntentAddTask, true},
		{"  add_task ", IntentAddTask, true},
		{"get_weather", IntentGetWeather, true},
		{"ORDER_PIZZA", IntentGeneralChat, false},
		{"", IntentGeneralChat, false},
	}
	for _, tt := range tests {
		got, ok := ParseIntent(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseIntent(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCardType_EveryIntentHasCard(t *testing.T) {
	for _, intent := range AllIntents {
		if intent.CardType() == "" {
			t.Errorf("intent %s has no card type", intent)
		}
	}
	if IntentGeneralChat.CardType() != "conversation" {
		t.Errorf("expected conversation card for chat, got %s", IntentGeneralChat.CardType())
	}
	if IntentAddTask.CardType() != "task_creation" {
		t.Errorf("expected task_creation card, got %s", IntentAddTask.CardType())
	}
	if IntentRecallMemory.CardType() != "memory" {
		t.Errorf("expected memory card, got %s", IntentRecallMemory.CardType())
	}
}

func TestAllIntents_Unique(t *testing.T) {
	seen := make(map[Intent]bool)
	for _, intent := range AllIntents {
		if seen[intent] {
			t.Errorf("duplicate intent %s", intent)
		}
		seen[intent] = true
	}
	if len(seen) != 24 {
		t.Errorf("expected 24 intents, got %d", len(seen))
	}
}

func TestClampConfidence(t *testing.T) {
	if clampConfidence(-0.2) != 0 {
		t.Error("negative confidence should clamp to 0")
	}
	if clampConfidence(1.7) != 1 {
		t.Error("confidence above 1 should clamp to 1")
	}
	if clampConfidence(0.42) != 0.42 {
		t.Error("in-range confidence should be unchanged")
	}
}
