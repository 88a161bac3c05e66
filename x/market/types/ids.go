package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Protocol identifiers are 64-bit integers encoded as decimal strings on the
// wire, so that clients which parse JSON numbers as floats (JavaScript, jq)
// never lose precision.

// DeferredExecId is a unique numeric ID for each deferred execution item.
type DeferredExecId uint64

// PositionId is a unique numeric ID for each position.
type PositionId uint64

// OrderId is a unique numeric ID for each limit order.
type OrderId uint64

func (id DeferredExecId) String() string { return strconv.FormatUint(uint64(id), 10) }
func (id PositionId) String() string     { return strconv.FormatUint(uint64(id), 10) }
func (id OrderId) String() string        { return strconv.FormatUint(uint64(id), 10) }

func marshalStringU64(v uint64) ([]byte, error) {
	return json.Marshal(strconv.FormatUint(v, 10))
}

func unmarshalStringU64(data []byte, what string) (uint64, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, fmt.Errorf("%s: expected decimal string: %w", what, err)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	return v, nil
}

func (id DeferredExecId) MarshalJSON() ([]byte, error) { return marshalStringU64(uint64(id)) }

func (id *DeferredExecId) UnmarshalJSON(data []byte) error {
	v, err := unmarshalStringU64(data, "deferred exec id")
	if err != nil {
		return err
	}
	*id = DeferredExecId(v)
	return nil
}

func (id PositionId) MarshalJSON() ([]byte, error) { return marshalStringU64(uint64(id)) }

func (id *PositionId) UnmarshalJSON(data []byte) error {
	v, err := unmarshalStringU64(data, "position id")
	if err != nil {
		return err
	}
	*id = PositionId(v)
	return nil
}

func (id OrderId) MarshalJSON() ([]byte, error) { return marshalStringU64(uint64(id)) }

func (id *OrderId) UnmarshalJSON(data []byte) error {
	v, err := unmarshalStringU64(data, "order id")
	if err != nil {
		return err
	}
	*id = OrderId(v)
	return nil
}
