package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/starford/deepdish/internal/apperr"
)

// Unit is the amount of an ingredient used by a recipe. It is a closed sum
// type: Milliliters, Grams, Teaspoons, Cup and Other.
type Unit interface {
	Tag() string
	Quantity() float64
	isUnit()
}

type Milliliters struct{ Amount float64 }

type Grams struct{ Amount float64 }

type Teaspoons struct{ Amount float64 }

type Cup struct{ Amount float64 }

// Other is a free-form unit such as "cloves" or "pinch".
type Other struct {
	Amount float64
	Name   string
}

func (Milliliters) Tag() string { return "milliliters" }
func (Grams) Tag() string       { return "grams" }
func (Teaspoons) Tag() string   { return "teaspoons" }
func (Cup) Tag() string         { return "cup" }
func (Other) Tag() string       { return "other" }

func (u Milliliters) Quantity() float64 { return u.Amount }
func (u Grams) Quantity() float64       { return u.Amount }
func (u Teaspoons) Quantity() float64   { return u.Amount }
func (u Cup) Quantity() float64         { return u.Amount }
func (u Other) Quantity() float64       { return u.Amount }

func (Milliliters) isUnit() {}
func (Grams) isUnit()       {}
func (Teaspoons) isUnit()   {}
func (Cup) isUnit()         {}
func (Other) isUnit()       {}

// FromTablespoons converts tablespoons to teaspoons (1 tbsp = 3 tsp).
func FromTablespoons(tablespoons float64) Unit {
	return Teaspoons{Amount: tablespoons * 3}
}

type unitWire struct {
	Tag    string   `json:"tag"`
	Amount *float64 `json:"amount"`
	Unit   *string  `json:"unit,omitempty"`
}

// MarshalUnit encodes u as {"tag": ..., "amount": ..., "unit"?: ...}.
func MarshalUnit(u Unit) ([]byte, error) {
	if u == nil {
		return nil, errors.New("unit is nil")
	}
	amount := u.Quantity()
	w := unitWire{Tag: u.Tag(), Amount: &amount}
	if o, ok := u.(Other); ok {
		w.Unit = &o.Name
	}
	return json.Marshal(w)
}

// UnmarshalUnit decodes a tagged unit. Unknown tags, missing sub-fields and
// negative or non-finite amounts fail with DeserializationFailed("amount").
func UnmarshalUnit(data []byte) (Unit, error) {
	var w unitWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, apperr.DeserializationFailed("amount", err)
	}
	if w.Amount == nil {
		return nil, apperr.DeserializationFailed("amount", fmt.Errorf("unit %q: missing amount", w.Tag))
	}
	a := *w.Amount
	if math.IsNaN(a) || math.IsInf(a, 0) || a < 0 {
		return nil, apperr.DeserializationFailed("amount", fmt.Errorf("invalid amount %v", a))
	}
	switch w.Tag {
	case "milliliters":
		return Milliliters{Amount: a}, nil
	case "grams":
		return Grams{Amount: a}, nil
	case "teaspoons":
		return Teaspoons{Amount: a}, nil
	case "cup":
		return Cup{Amount: a}, nil
	case "other":
		if w.Unit == nil || *w.Unit == "" {
			return nil, apperr.DeserializationFailed("amount", errors.New("unit other: missing unit"))
		}
		return Other{Amount: a, Name: *w.Unit}, nil
	default:
		return nil, apperr.DeserializationFailed("amount", fmt.Errorf("unknown unit tag %q", w.Tag))
	}
}

// UnitJSON adapts Unit to encoding/json for use inside request and response
// bodies.
type UnitJSON struct{ Unit }

func (u UnitJSON) MarshalJSON() ([]byte, error) { return MarshalUnit(u.Unit) }

func (u *UnitJSON) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalUnit(data)
	if err != nil {
		return err
	}
	u.Unit = v
	return nil
}
