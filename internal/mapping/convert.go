package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ynput/ayon-ftrack/internal/ftrack"
)

// ErrInvalidFPS reports an fps string no supported form could parse.
var ErrInvalidFPS = errors.New("mapping: invalid fps value")

// attrConfig is the decoded Config blob of a custom attribute
// configuration. Only the keys conversion cares about are kept.
type attrConfig struct {
	IsDecimal   bool `json:"isdecimal"`
	MultiSelect bool `json:"multiSelect"`
}

func decodeAttrConfig(raw string) attrConfig {
	var cfg attrConfig
	if raw == "" {
		return cfg
	}
	// A malformed blob degrades to defaults; the value still
	// converts with the type's base rules.
	_ = json.Unmarshal([]byte(raw), &cfg)
	return cfg
}

// Convert turns a raw tracker event value into the hub-typed value
// for the given attribute configuration. ok is false when the
// attribute type does not synchronize (expression, notificationtype,
// dynamic enumerator) or the raw text does not parse as the declared
// type. Convert never fails on a supported type with well-formed
// input.
func Convert(conf *ftrack.CustomAttributeConfig, raw string) (any, bool) {
	switch conf.Type.Name {
	case "text":
		return raw, true

	case "boolean":
		lowered := strings.ToLower(raw)
		return raw == "1" || lowered == "true", true

	case "date":
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, true
			}
		}
		return nil, false

	case "number":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false
		}
		if decodeAttrConfig(conf.Config).IsDecimal {
			return f, true
		}
		return int(f), true

	case "enumerator":
		if decodeAttrConfig(conf.Config).MultiSelect {
			return strings.Split(raw, ", "), true
		}
		return raw, true
	}
	return nil, false
}

// ConvertFPS parses the frame-rate forms the tracker stores: plain
// floats, comma decimal separators ("23,976"), and rationals
// ("24000/1001").
func ConvertFPS(raw string) (float64, error) {
	value := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if value == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidFPS)
	}
	if num, den, ok := strings.Cut(value, "/"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFPS, raw)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil || d == 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFPS, raw)
		}
		return n / d, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFPS, raw)
	}
	return f, nil
}
