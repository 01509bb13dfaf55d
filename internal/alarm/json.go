package alarm

import (
	"encoding/json"
	"fmt"
	"time"
)

// Enum values serialize as strings for forward compatibility; an unknown
// repeat string decodes to repeatInvalid instead of failing the document so
// a single corrupt entry cannot take the whole list down.

var kindNames = map[Kind]string{
	KindTimed:     "Timed",
	KindCountdown: "Countdown",
}

var priorityNames = map[Priority]string{
	PriorityLow:      "Low",
	PriorityNormal:   "Normal",
	PriorityHigh:     "High",
	PriorityCritical: "Critical",
}

var repeatNames = map[Repeat]string{
	RepeatNone:    "None",
	RepeatDaily:   "Daily",
	RepeatWeekly:  "Weekly",
	RepeatMonthly: "Monthly",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Timed"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for value, candidate := range kindNames {
		if candidate == name {
			*k = value
			return nil
		}
	}
	*k = KindTimed
	return nil
}

func (r Repeat) String() string {
	if name, ok := repeatNames[r]; ok {
		return name
	}
	return "Invalid"
}

func (r Repeat) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return json.Marshal("None")
	}
	return json.Marshal(r.String())
}

func (r *Repeat) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for value, candidate := range repeatNames {
		if candidate == name {
			*r = value
			return nil
		}
	}
	*r = repeatInvalid
	return nil
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "Normal"
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for value, candidate := range priorityNames {
		if candidate == name {
			*p = value
			return nil
		}
	}
	*p = PriorityNormal
	return nil
}

func (d Weekday) String() string {
	return time.Weekday(d).String()
}

func (d Weekday) MarshalJSON() ([]byte, error) {
	if d < 0 || d > Weekday(time.Saturday) {
		return nil, fmt.Errorf("alarm: weekday out of range: %d", int(d))
	}
	return json.Marshal(d.String())
}

func (d *Weekday) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for candidate := time.Sunday; candidate <= time.Saturday; candidate++ {
		if candidate.String() == name {
			*d = Weekday(candidate)
			return nil
		}
	}
	return fmt.Errorf("alarm: unknown weekday %q", name)
}
