package models

import (
	"encoding/json"
	"fmt"

	"github.com/starford/deepdish/internal/apperr"
)

// Servings is either a range (ServingsFromTo) or an exact count.
type Servings interface {
	Tag() string
	isServings()
}

type ServingsFromTo struct{ From, To uint16 }

type ServingsExact struct{ Value uint16 }

func (ServingsFromTo) Tag() string { return "from_to" }
func (ServingsExact) Tag() string  { return "exact" }

func (ServingsFromTo) isServings() {}
func (ServingsExact) isServings()  {}

type servingsWire struct {
	Tag   string  `json:"tag"`
	From  *uint16 `json:"from,omitempty"`
	To    *uint16 `json:"to,omitempty"`
	Value *uint16 `json:"value,omitempty"`
}

// MarshalServings encodes s as {"tag":"from_to","from":..,"to":..} or
// {"tag":"exact","value":..}.
func MarshalServings(s Servings) ([]byte, error) {
	switch v := s.(type) {
	case ServingsFromTo:
		return json.Marshal(servingsWire{Tag: v.Tag(), From: &v.From, To: &v.To})
	case ServingsExact:
		return json.Marshal(servingsWire{Tag: v.Tag(), Value: &v.Value})
	default:
		return nil, fmt.Errorf("unsupported servings %T", s)
	}
}

// UnmarshalServings decodes a tagged servings value.
func UnmarshalServings(data []byte) (Servings, error) {
	var w servingsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, apperr.DeserializationFailed("servings", err)
	}
	switch w.Tag {
	case "from_to":
		if w.From == nil || w.To == nil {
			return nil, apperr.DeserializationFailed("servings", fmt.Errorf("from_to requires from and to"))
		}
		if *w.From > *w.To {
			return nil, apperr.DeserializationFailed("servings", fmt.Errorf("from %d is greater than to %d", *w.From, *w.To))
		}
		return ServingsFromTo{From: *w.From, To: *w.To}, nil
	case "exact":
		if w.Value == nil {
			return nil, apperr.DeserializationFailed("servings", fmt.Errorf("exact requires value"))
		}
		return ServingsExact{Value: *w.Value}, nil
	default:
		return nil, apperr.DeserializationFailed("servings", fmt.Errorf("unknown servings tag %q", w.Tag))
	}
}

// ServingsJSON adapts Servings to encoding/json.
type ServingsJSON struct{ Servings }

func (s ServingsJSON) MarshalJSON() ([]byte, error) { return MarshalServings(s.Servings) }

func (s *ServingsJSON) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalServings(data)
	if err != nil {
		return err
	}
	s.Servings = v
	return nil
}
