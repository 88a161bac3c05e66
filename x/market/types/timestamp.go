package types

import (
	"time"
)

// Timestamp is a point in time measured in nanoseconds since the Unix epoch.
// Like the numeric IDs it is serialized as a decimal string to survive
// float-based JSON clients.
type Timestamp uint64

// NewTimestampFromTime converts a time.Time to a Timestamp.
func NewTimestampFromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixNano())
}

// NewTimestampFromSeconds builds a Timestamp from whole seconds since epoch.
func NewTimestampFromSeconds(secs uint64) Timestamp {
	return Timestamp(secs * uint64(time.Second))
}

// ToTime converts the Timestamp to a time.Time.
func (t Timestamp) ToTime() time.Time {
	return time.Unix(0, int64(t)).UTC()
}

// PlusSeconds returns the timestamp advanced by the given number of seconds.
func (t Timestamp) PlusSeconds(secs uint64) Timestamp {
	return t + Timestamp(secs*uint64(time.Second))
}

func (t Timestamp) String() string { return DeferredExecId(t).String() }

func (t Timestamp) MarshalJSON() ([]byte, error) { return marshalStringU64(uint64(t)) }

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	v, err := unmarshalStringU64(data, "timestamp")
	if err != nil {
		return err
	}
	*t = Timestamp(v)
	return nil
}
