package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEncodeMessageKeysByPoll(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg, err := encodeMessage(Event{
		Type:         TypeBallotCast,
		PollID:       42,
		BallotID:     7,
		Voter:        "alice",
		CandidateIDs: []uint{1, 3},
		OccurredAt:   at,
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if string(msg.Key) != "42" {
		t.Fatalf("expected key 42, got %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != TypeBallotCast {
		t.Fatalf("expected type header, got %+v", msg.Headers)
	}

	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.BallotID != 7 || decoded.Voter != "alice" || len(decoded.CandidateIDs) != 2 {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestNewKafkaPublisherRequiresBrokersAndTopic(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "topic"); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewKafkaPublisher([]string{"localhost:9092"}, ""); err == nil {
		t.Fatalf("expected error without topic")
	}
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "topic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}
