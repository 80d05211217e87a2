package statement

import (
	"fmt"
	"strings"
)

// Consistency is the number of replicas that must acknowledge a request.
// The zero value leaves the choice to the driver.
type Consistency uint8

const (
	ConsistencyUnset Consistency = iota
	Any
	One
	Two
	Three
	Quorum
	All
	LocalQuorum
	EachQuorum
	LocalOne
)

var consistencyNames = map[Consistency]string{
	Any:         "ANY",
	One:         "ONE",
	Two:         "TWO",
	Three:       "THREE",
	Quorum:      "QUORUM",
	All:         "ALL",
	LocalQuorum: "LOCAL_QUORUM",
	EachQuorum:  "EACH_QUORUM",
	LocalOne:    "LOCAL_ONE",
}

// ParseConsistency accepts the level names case-insensitively, with or
// without the underscore in the LOCAL_ and EACH_ forms.
func ParseConsistency(s string) (Consistency, error) {
	switch strings.ToUpper(s) {
	case "ANY":
		return Any, nil
	case "ONE":
		return One, nil
	case "TWO":
		return Two, nil
	case "THREE":
		return Three, nil
	case "QUORUM":
		return Quorum, nil
	case "ALL":
		return All, nil
	case "LOCAL_QUORUM", "LOCALQUORUM":
		return LocalQuorum, nil
	case "EACH_QUORUM", "EACHQUORUM":
		return EachQuorum, nil
	case "LOCAL_ONE", "LOCALONE":
		return LocalOne, nil
	}
	return ConsistencyUnset, fmt.Errorf("invalid consistency level: %s", s)
}

func (c Consistency) String() string {
	if n, ok := consistencyNames[c]; ok {
		return n
	}
	return ""
}

// Set implements flag.Value.
func (c *Consistency) Set(s string) error {
	if s == "" {
		*c = ConsistencyUnset
		return nil
	}
	v, err := ParseConsistency(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Consistency) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return c.Set(s)
}

// MarshalYAML implements yaml.Marshaler.
func (c Consistency) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// SerialConsistency is the consistency of the Paxos phase of conditional
// statements. The zero value leaves the choice to the driver.
type SerialConsistency uint8

const (
	SerialUnset SerialConsistency = iota
	Serial
	LocalSerial
)

// ParseSerialConsistency accepts SERIAL and LOCAL_SERIAL (or LOCALSERIAL),
// case-insensitively.
func ParseSerialConsistency(s string) (SerialConsistency, error) {
	switch strings.ToUpper(s) {
	case "SERIAL":
		return Serial, nil
	case "LOCAL_SERIAL", "LOCALSERIAL":
		return LocalSerial, nil
	}
	return SerialUnset, fmt.Errorf("invalid serial consistency level: %s", s)
}

func (c SerialConsistency) String() string {
	switch c {
	case Serial:
		return "SERIAL"
	case LocalSerial:
		return "LOCAL_SERIAL"
	}
	return ""
}

// Set implements flag.Value.
func (c *SerialConsistency) Set(s string) error {
	if s == "" {
		*c = SerialUnset
		return nil
	}
	v, err := ParseSerialConsistency(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *SerialConsistency) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return c.Set(s)
}

// MarshalYAML implements yaml.Marshaler.
func (c SerialConsistency) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}
