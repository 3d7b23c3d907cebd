package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ErrNoJSON is returned when model output contains no JSON object.
var ErrNoJSON = errors.New("no JSON object in output")

var (
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	fencePattern  = regexp.MustCompile("(?s)```(?:json)?")
)

// DecodeJSON locates the JSON object inside free-form model output and decodes
// it into out using weak typing, so "true", 1 and true all decode into a bool
// and "5000" into a number. Fields use mapstructure tags.
func DecodeJSON(text string, out any) error {
	text = fencePattern.ReplaceAllString(text, "")
	raw := objectPattern.FindString(strings.TrimSpace(text))
	if raw == "" {
		return ErrNoJSON
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return fmt.Errorf("malformed JSON in output: %w", err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(fields); err != nil {
		return fmt.Errorf("unexpected JSON shape: %w", err)
	}
	return nil
}
