package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// HashOrSchedule is either a committed schedule hash or the plaintext vesting
// schedule. Exactly one of the fields is set. In JSON a hash is a base58
// string and a schedule is a checkpoint array.
type HashOrSchedule struct {
	Hash     *ScheduleHash
	Schedule Schedule
}

func HashedVesting(h ScheduleHash) *HashOrSchedule {
	return &HashOrSchedule{Hash: &h}
}

func PlainVesting(s Schedule) *HashOrSchedule {
	return &HashOrSchedule{Schedule: s}
}

func (v *HashOrSchedule) IsHash() bool { return v.Hash != nil }

func (v *HashOrSchedule) Clone() *HashOrSchedule {
	if v == nil {
		return nil
	}
	out := &HashOrSchedule{Schedule: v.Schedule.Clone()}
	if v.Hash != nil {
		h := *v.Hash
		out.Hash = &h
	}
	return out
}

func (v HashOrSchedule) MarshalJSON() ([]byte, error) {
	if v.Hash != nil {
		return json.Marshal(v.Hash.String())
	}
	return json.Marshal(v.Schedule)
}

func (v *HashOrSchedule) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var h ScheduleHash
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if err := h.UnmarshalText([]byte(s)); err != nil {
			return err
		}
		*v = HashOrSchedule{Hash: &h}
		return nil
	}
	var s Schedule
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("vesting_schedule must be a hash or a checkpoint list: %w", err)
	}
	*v = HashOrSchedule{Schedule: s}
	return nil
}

// TerminationConfig grants one account the right to claw back the unvested
// part of a lockup. Recovered funds go to the payer, or to the terminator
// when no payer is recorded.
type TerminationConfig struct {
	TerminatorID    string          `json:"terminator_id"`
	PayerID         string          `json:"payer_id,omitempty"`
	VestingSchedule *HashOrSchedule `json:"vesting_schedule,omitempty"`
}

func (c *TerminationConfig) Payer() string {
	if c.PayerID != "" {
		return c.PayerID
	}
	return c.TerminatorID
}

func (c *TerminationConfig) Clone() *TerminationConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.VestingSchedule = c.VestingSchedule.Clone()
	return &out
}
