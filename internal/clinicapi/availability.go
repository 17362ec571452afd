package clinicapi

import (
	"bytes"
	"encoding/json"

	"github.com/wolfman30/clinicbook/internal/slots"
)

type availabilityPayload struct {
	records slots.AvailabilitySlots
}

func (p *availabilityPayload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &p.records)
	}
	var wrapped struct {
		Slots slots.AvailabilitySlots `json:"slots"`
		Data  slots.AvailabilitySlots `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if len(wrapped.Slots) > 0 {
		p.records = wrapped.Slots
	} else {
		p.records = wrapped.Data
	}
	return nil
}
