package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampConversions(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 500, time.UTC)
	ts := NewTimestampFromTime(now)
	if !ts.ToTime().Equal(now) {
		t.Errorf("expected nanosecond-exact round trip, got %s", ts.ToTime())
	}

	plus := ts.PlusSeconds(90)
	if got := plus.ToTime().Sub(now); got != 90*time.Second {
		t.Errorf("expected +90s, got %s", got)
	}
}

func TestTimestampJSONIsDecimalString(t *testing.T) {
	ts := NewTimestampFromSeconds(1700000000)
	bz, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(bz) != `"1700000000000000000"` {
		t.Errorf("expected a decimal string, got %s", bz)
	}
	var back Timestamp
	if err := json.Unmarshal(bz, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != ts {
		t.Errorf("round trip mismatch: %s != %s", back, ts)
	}

	// Bare JSON numbers are rejected: float parsers would mangle them.
	if err := json.Unmarshal([]byte(`1700000000000000000`), &back); err == nil {
		t.Error("expected a bare number to be rejected")
	}
}

func TestIdJSONIsDecimalString(t *testing.T) {
	// The largest uint64 survives, which a float64 JSON number cannot hold.
	id := DeferredExecId(^uint64(0))
	bz, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(bz) != `"18446744073709551615"` {
		t.Errorf("expected a decimal string, got %s", bz)
	}
	var back DeferredExecId
	if err := json.Unmarshal(bz, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != id {
		t.Errorf("round trip mismatch: %s != %s", back, id)
	}
}
