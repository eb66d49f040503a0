package mq

import "testing"

func TestParseBroadcast(t *testing.T) {
	payload, err := ParseBroadcast([]byte(`{"managers": ["Proto-7_CTM", "Proto-8_CTM"], "command": "shutdown"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payload.Managers) != 2 || payload.Command != "shutdown" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestParseBroadcast_BadJSON(t *testing.T) {
	if _, err := ParseBroadcast([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestBroadcastTargeting(t *testing.T) {
	payload := BroadcastPayload{
		Managers: []string{"Proto-7_CTM", "Proto-8_CTM"},
		Command:  "shutdown",
	}

	// Имя в списке
	if !payload.Targets("Proto-7_CTM") {
		t.Error("manager listed by exact name should be targeted")
	}
	// Регистронезависимо
	if !payload.Targets("proto-8_ctm") {
		t.Error("targeting must be case-insensitive")
	}
	// Имени в списке нет — команда игнорируется
	if payload.Targets("Proto-9_CTM") {
		t.Error("manager not in the list must not be targeted")
	}
	// Пустой список не адресует никого
	empty := BroadcastPayload{Command: "shutdown"}
	if empty.Targets("Proto-7_CTM") {
		t.Error("empty manager list must not target anyone")
	}
}

func TestRecognize(t *testing.T) {
	cases := []struct {
		raw  string
		want Command
		ok   bool
	}{
		{"shutdown", CommandShutdown, true},
		{"Shutdown", CommandShutdown, true},
		{"  READCONFIG  ", CommandReadConfig, true},
		{"readconfig", CommandReadConfig, true},
		{"reboot", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		cmd, ok := BroadcastPayload{Command: tc.raw}.Recognize()
		if ok != tc.ok || cmd != tc.want {
			t.Errorf("Recognize(%q) = (%q, %v), want (%q, %v)", tc.raw, cmd, ok, tc.want, tc.ok)
		}
	}
}
