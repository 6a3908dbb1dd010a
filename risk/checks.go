package risk

import (
	"fmt"
	"strings"
)

type Violation struct {
	Code string
	Msg  string
}

func (v Violation) String() string {
	return v.Code + ": " + v.Msg
}

// OrderPolicy bounds what an OPEN decision may submit.
type OrderPolicy struct {
	MaxVolume float64 `json:"max_volume" yaml:"max_volume"`
	MinRR     float64 `json:"min_rr" yaml:"min_rr"`
}

// OrderIntent is the order the decision wants to place. Entry is zero for
// market orders, in which case the side checks against the stop are skipped.
type OrderIntent struct {
	Buy        bool
	Entry      float64
	Stop       float64
	TakeProfit float64
	Volume     float64
}

type Decision struct {
	Allowed    bool
	Violations []Violation
	PlannedRR  float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Error joins the violations, or returns nil when the order is allowed.
func (d Decision) Error() error {
	if d.Allowed {
		return nil
	}
	parts := make([]string, len(d.Violations))
	for i, v := range d.Violations {
		parts[i] = v.String()
	}
	return fmt.Errorf("order rejected: %s", strings.Join(parts, "; "))
}

// CheckOrder sanity checks an order before it is sent to the broker.
func CheckOrder(p OrderPolicy, in OrderIntent) Decision {
	d := Decision{Allowed: true}

	if in.Stop <= 0 {
		d.add("NO_STOP", "stop loss must be set")
		return d
	}
	if in.Volume <= 0 {
		d.add("NO_VOLUME", "volume must be positive")
	}
	if p.MaxVolume > 0 && in.Volume > p.MaxVolume {
		d.add("VOLUME_TOO_HIGH", fmt.Sprintf("volume %g exceeds max %g", in.Volume, p.MaxVolume))
	}

	if in.Entry > 0 {
		if in.Buy && in.Stop >= in.Entry {
			d.add("STOP_WRONG_SIDE", fmt.Sprintf("buy stop %g not below entry %g", in.Stop, in.Entry))
		}
		if !in.Buy && in.Stop <= in.Entry {
			d.add("STOP_WRONG_SIDE", fmt.Sprintf("sell stop %g not above entry %g", in.Stop, in.Entry))
		}
		if in.TakeProfit > 0 {
			if in.Buy && in.TakeProfit <= in.Entry {
				d.add("TP_WRONG_SIDE", fmt.Sprintf("buy target %g not above entry %g", in.TakeProfit, in.Entry))
			}
			if !in.Buy && in.TakeProfit >= in.Entry {
				d.add("TP_WRONG_SIDE", fmt.Sprintf("sell target %g not below entry %g", in.TakeProfit, in.Entry))
			}
			d.PlannedRR = RR(in.Entry, in.Stop, in.TakeProfit)
			if p.MinRR > 0 && d.PlannedRR < p.MinRR {
				d.add("RR_TOO_LOW", fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
			}
		}
	}

	return d
}
