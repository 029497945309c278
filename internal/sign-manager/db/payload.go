package db

import (
	"encoding/json"
	"fmt"
	"strconv"

	"sign-scheduler-service/pkg/validation"
)

// Item kinds in the canonical template payload.
const (
	ItemStatic = "static"
	ItemScroll = "scroll"
)

// PayloadItem is one display element of a template payload. Color is an RGB
// triple with channels 0..255. Speed applies to scroll items only.
type PayloadItem struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Color   [3]int `json:"color"`
	Speed   int    `json:"speed,omitempty"`
}

// TemplatePayload is the canonical JSON shape stored in Template.Payload.
// Item order is display order and is significant.
type TemplatePayload struct {
	Name  string        `json:"name"`
	Items []PayloadItem `json:"items"`
}

// PayloadSchema is the JSON schema every stored template payload must
// satisfy. Enforced at creation and re-checked before execution, so a
// drifting row cannot reach the sign. The item type is a free string here:
// the creation API only accepts static and scroll, but the executor must
// skip, not reject, kinds added by newer writers.
const PayloadSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"items": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"properties": {
					"type": {"type": "string"},
					"content": {"type": "string"},
					"x": {"type": "integer", "minimum": 0},
					"y": {"type": "integer", "minimum": 0},
					"color": {
						"type": "array",
						"items": {"type": "integer", "minimum": 0, "maximum": 255},
						"minItems": 3,
						"maxItems": 3
					},
					"speed": {"type": "integer", "minimum": 1}
				},
				"required": ["type", "content", "x", "y", "color"]
			}
		}
	},
	"required": ["name", "items"]
}`

// EncodePayload marshals a payload to the stored JSON form.
func EncodePayload(payload *TemplatePayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal template payload: %w", err)
	}
	return string(raw), nil
}

// DecodePayload validates a stored payload against PayloadSchema and
// unmarshals it.
func DecodePayload(raw string) (*TemplatePayload, error) {
	if err := validation.ValidateJSONWithSchema(PayloadSchema, raw); err != nil {
		return nil, err
	}
	var payload TemplatePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template payload: %w", err)
	}
	return &payload, nil
}

// ParseHexColor converts a "#rrggbb" (or "rrggbb") color to an RGB triple.
func ParseHexColor(hex string) ([3]int, error) {
	var color [3]int
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return color, fmt.Errorf("invalid color format %q (expected #rrggbb)", hex)
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return color, fmt.Errorf("invalid color format %q (expected #rrggbb)", hex)
		}
		color[i] = int(v)
	}
	return color, nil
}
