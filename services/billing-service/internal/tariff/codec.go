// services/billing-service/internal/tariff/codec.go
package tariff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// wireConfig is the persisted JSON shape. Numbers stay raw so precision
// survives exactly as submitted.
type wireConfig struct {
	Type         *string         `json:"type"`
	Currency     *string         `json:"currency"`
	Rate         json.RawMessage `json:"rate,omitempty"`
	FixedFee     json.RawMessage `json:"fixed_fee,omitempty"`
	Zones        []wireZone      `json:"zones,omitempty"`
	WeekendLogic *string         `json:"weekend_logic,omitempty"`
}

type wireZone struct {
	ID    string          `json:"id"`
	Start string          `json:"start"`
	End   string          `json:"end"`
	Rate  json.RawMessage `json:"rate"`
}

// ParseConfiguration decodes and validates a configuration document.
// Every failure is a *ConfigurationError.
func ParseConfiguration(data []byte) (Configuration, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wireConfig
	if err := dec.Decode(&w); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, configErr(fmt.Sprintf("%s has the wrong type", typeErr.Field))
		}
		return nil, configErr("malformed document")
	}
	if dec.More() {
		return nil, configErr("trailing data after document")
	}
	if w.Type == nil {
		return nil, configErr("type is required")
	}
	if w.Currency == nil {
		return nil, configErr("currency is required")
	}

	fee, err := optionalNumber("fixed_fee", w.FixedFee)
	if err != nil {
		return nil, err
	}

	var cfg Configuration
	switch Kind(*w.Type) {
	case KindFlat:
		if len(w.Zones) > 0 || w.WeekendLogic != nil {
			return nil, configErr("flat configuration does not take zones")
		}
		rate, err := requiredNumber("rate", w.Rate)
		if err != nil {
			return nil, err
		}
		cfg = FlatConfig{Currency: *w.Currency, Rate: rate, FixedFee: fee}

	case KindTimeOfUse:
		if len(w.Rate) > 0 {
			return nil, configErr("time_of_use configuration takes rates per zone")
		}
		tou := TimeOfUseConfig{Currency: *w.Currency, FixedFee: fee}
		if w.WeekendLogic != nil {
			tou.WeekendLogic = WeekendLogic(*w.WeekendLogic)
		}
		for _, z := range w.Zones {
			rate, err := requiredNumber("zone rate", z.Rate)
			if err != nil {
				return nil, err
			}
			tou.Zones = append(tou.Zones, Zone{ID: z.ID, Start: z.Start, End: z.End, Rate: rate})
		}
		cfg = tou

	default:
		return nil, configErr(fmt.Sprintf("unknown type %q", *w.Type))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MarshalConfiguration encodes c in the persisted JSON shape.
func MarshalConfiguration(c Configuration) ([]byte, error) {
	kind := string(c.Kind())
	currency := c.CurrencyCode()
	w := wireConfig{Type: &kind, Currency: &currency}

	switch cfg := c.(type) {
	case FlatConfig:
		w.Rate = number(cfg.Rate)
		w.FixedFee = optional(cfg.FixedFee)
	case TimeOfUseConfig:
		w.FixedFee = optional(cfg.FixedFee)
		if cfg.WeekendLogic != "" {
			logic := string(cfg.WeekendLogic)
			w.WeekendLogic = &logic
		}
		w.Zones = make([]wireZone, 0, len(cfg.Zones))
		for _, z := range cfg.Zones {
			w.Zones = append(w.Zones, wireZone{ID: z.ID, Start: z.Start, End: z.End, Rate: number(z.Rate)})
		}
	default:
		return nil, configErr(fmt.Sprintf("unsupported configuration %T", c))
	}
	return json.Marshal(w)
}

func requiredNumber(field string, raw json.RawMessage) (decimal.Decimal, error) {
	d, err := optionalNumber(field, raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d == nil {
		return decimal.Zero, configErr(field + " is required")
	}
	return *d, nil
}

func optionalNumber(field string, raw json.RawMessage) (*decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		return nil, configErr(field + " must be a number")
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return nil, configErr(field + " must be a number")
	}
	if d.IsNegative() {
		return nil, configErr(field + " must not be negative")
	}
	return &d, nil
}

// number renders d with exactly the digits it was parsed with, so 0.1234 and 1.50 come back unchanged.
func number(d decimal.Decimal) json.RawMessage {
	if exp := d.Exponent(); exp < 0 {
		return json.RawMessage(d.StringFixed(-exp))
	}
	return json.RawMessage(d.String())
}

func optional(d *decimal.Decimal) json.RawMessage {
	if d == nil {
		return nil
	}
	return number(*d)
}
