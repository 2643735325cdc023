package bus

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMetricMessageRoundTrip(t *testing.T) {
	original := MetricMessage{
		Type:      TypeMetric,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		SystemID:  "abc-123",
		Data:      json.RawMessage(`{"cpu_percent":42.5}`),
	}

	body, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded MetricMessage
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.SystemID != original.SystemID {
		t.Errorf("system_id: got %q, want %q", decoded.SystemID, original.SystemID)
	}
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if string(decoded.Data) != string(original.Data) {
		t.Errorf("data: got %s, want %s", decoded.Data, original.Data)
	}
}

func TestDiscoveryMessageMarshalLeavesCountUnset(t *testing.T) {
	hostname := "ws05"
	msg := DiscoveryMessage{
		Systems: []DiscoveredSystem{
			{NetworkAddress: "10.30.0.5", Hostname: &hostname},
			{NetworkAddress: "10.30.0.6"},
		},
	}
	body, _ := json.Marshal(msg)

	var decoded DiscoveryMessage
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Systems) != 2 {
		t.Fatalf("systems: got %d, want 2", len(decoded.Systems))
	}
	// Count is only populated by PublishDiscovery, not by raw marshal.
	if decoded.Count != 0 {
		t.Errorf("count: got %d, want 0 before PublishDiscovery sets it", decoded.Count)
	}
}

func TestIsMalformedRejectsNonObjectPayload(t *testing.T) {
	cases := []struct {
		payload string
		want    bool
	}{
		{`{"type":"metric"}`, false},
		{`  {"type":"metric"}`, false},
		{`not json`, true},
		{`[1,2,3]`, true},
		{``, true},
		{`   `, true},
	}
	for _, c := range cases {
		if got := IsMalformed([]byte(c.payload)); got != c.want {
			t.Errorf("IsMalformed(%q) = %v, want %v", c.payload, got, c.want)
		}
	}
}
