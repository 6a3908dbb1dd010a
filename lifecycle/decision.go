package lifecycle

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rustyeddy/tradekeeper/trade"
)

type Kind string

const (
	Open        Kind = "OPEN"
	CloseManual Kind = "CLOSE_MANUAL"
	Hold        Kind = "HOLD"
	NoTrade     Kind = "NO_TRADE"
)

// Decision is the structured outcome of an analysis. It arrives from an
// external service and is validated before anything acts on it.
type Decision struct {
	Decision   Kind            `json:"decision" validate:"required,oneof=OPEN CLOSE_MANUAL HOLD NO_TRADE"`
	Symbol     string          `json:"symbol" validate:"required"`
	Type       trade.OrderType `json:"type,omitempty" validate:"required_if=Decision OPEN,ordertype"`
	Price      float64         `json:"price,omitempty" validate:"gte=0"`
	StopLoss   float64         `json:"sl,omitempty" validate:"required_if=Decision OPEN,gte=0"`
	TakeProfit float64         `json:"tp,omitempty" validate:"gte=0"`
	Volume     float64         `json:"volume,omitempty" validate:"gte=0"`
	Reason     string          `json:"reason,omitempty"`
	// Analysis is the narrative kept with the trade until it closes.
	Analysis string `json:"analysis,omitempty"`
}

var (
	ErrInvalidDecision   = errors.New("invalid decision")
	ErrUnsupportedSymbol = errors.New("symbol not supported")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("ordertype", func(fl validator.FieldLevel) bool {
		ot := trade.OrderType(fl.Field().String())
		return ot == "" || ot.Valid()
	})
	return v
}

// Normalize canonicalizes casing and spelling of the enum fields so a
// payload like {"decision":"open","type":"buy limit"} validates.
func (d *Decision) Normalize() {
	d.Decision = Kind(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(string(d.Decision)), " ", "_")))
	d.Symbol = trade.NormalizeSymbol(d.Symbol)
	if d.Type != "" {
		if ot, err := trade.ParseOrderType(string(d.Type)); err == nil {
			d.Type = ot
		}
	}
}

// Validate checks required fields and, when supported is non-empty, that
// the symbol is one of them.
func (d Decision) Validate(supported []string) error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidDecision, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}
	if len(supported) > 0 && !slices.Contains(supported, d.Symbol) {
		return fmt.Errorf("%w: %s", ErrUnsupportedSymbol, d.Symbol)
	}
	return nil
}
