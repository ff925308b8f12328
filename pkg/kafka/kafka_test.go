package kafka

import (
	"encoding/json"
	"math"
	"testing"
)

type changed struct {
	Reason string `json:"reason"`
}

func TestEncode(t *testing.T) {
	msgs, err := encode([]Event{
		{Key: "directory", Value: changed{Reason: "import"}},
		{Key: "", Value: map[string]int{"n": 1}},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if string(msgs[0].Key) != "directory" {
		t.Errorf("key = %q", msgs[0].Key)
	}
	var got changed
	if err := json.Unmarshal(msgs[0].Value, &got); err != nil || got.Reason != "import" {
		t.Errorf("value = %s (%v)", msgs[0].Value, err)
	}
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	if _, err := encode([]Event{{Key: "x", Value: math.Inf(1)}}); err == nil {
		t.Fatal("expected error for +Inf")
	}
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[changed]([]byte(`{"reason":"seed"}`))
	if err != nil || got.Reason != "seed" {
		t.Fatalf("DecodeJSON = %+v, %v", got, err)
	}
	if _, err := DecodeJSON[changed]([]byte(`{`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}
