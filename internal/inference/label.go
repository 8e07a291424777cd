package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Label is one detected object. Coordinates are normalized to 0..1.
type Label struct {
	Class  string  `json:"class"`
	CX     float64 `json:"cx"`
	CY     float64 `json:"cy"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// UnmarshalJSON accepts either an object or a "<class> <cx> <cy> <w> <h>" line.
func (l *Label) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var line string
		if err := json.Unmarshal(data, &line); err != nil {
			return err
		}
		parsed, err := ParseLabelLine(line)
		if err != nil {
			return err
		}
		*l = parsed
		return nil
	}

	type plain Label
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = Label(p)
	return nil
}

// ParseLabelLine parses "<class> <cx> <cy> <w> <h>". Class names may contain
// spaces; the last four fields are the box.
func ParseLabelLine(line string) (Label, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Label{}, fmt.Errorf("label line %q: want class and four coordinates", line)
	}

	n := len(fields)
	var coords [4]float64
	for i, f := range fields[n-4:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Label{}, fmt.Errorf("label line %q: coordinate %d: %w", line, i+1, err)
		}
		coords[i] = v
	}

	return Label{
		Class:  strings.Join(fields[:n-4], " "),
		CX:     coords[0],
		CY:     coords[1],
		Width:  coords[2],
		Height: coords[3],
	}, nil
}

// Labels decodes either a JSON array of labels or one string holding a
// "<class> <cx> <cy> <w> <h>" line per label, the service's label file as is.
type Labels []Label

func (ls *Labels) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		parsed, err := parseLabels(text)
		if err != nil {
			return err
		}
		*ls = parsed
		return nil
	}

	var list []Label
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*ls = list
	return nil
}

// parseLabels parses one label per non-empty line.
func parseLabels(text string) ([]Label, error) {
	var labels []Label
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		l, err := ParseLabelLine(line)
		if err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, nil
}
