package risk

import (
	"math"

	"github.com/agile-defense/vesselwatch/pkg/target"
)

// Priority bucket bases; lower sorts first
const (
	OrderDanger       = 10000
	OrderWarning      = 20000
	OrderClosing      = 30000
	OrderDiverging    = 40000
	OrderUnknownRange = 50000
)

// Priority adjustments within a bucket. The combined spread stays well
// inside the 10000 gap between buckets.
const (
	closingBonus        = 1000.0
	tcpaWeight          = 1000.0
	tcpaScaleSeconds    = 3600.0
	cpaWeight           = 1000.0
	cpaScaleNM          = 5.0
	rangeWeightPerNM    = 100.0
	rangeWeightMax      = 2000.0
	unknownRangePenalty = 10000.0
)

// OrderLimit bounds the priority order to [-OrderLimit, OrderLimit]
const OrderLimit = 99999

// Priority computes the sortable priority order for a target in state.
// Lower values are more urgent.
func Priority(in Input, state target.AlarmState) int {
	closing := known(in.TCPA) && *in.TCPA > 0

	var order float64
	switch {
	case state == target.StateDanger:
		order = OrderDanger
	case state == target.StateWarning:
		order = OrderWarning
	case !known(in.Range):
		order = OrderUnknownRange
	case closing:
		order = OrderClosing
	default:
		order = OrderDiverging
	}

	if closing {
		order -= closingBonus
		order -= tcpaWeight * linearFalloff(*in.TCPA, tcpaScaleSeconds)
	}

	if known(in.CPA) && *in.CPA > 0 {
		order -= cpaWeight * linearFalloff(*in.CPA/MetersPerNM, cpaScaleNM)
	}

	switch {
	case known(in.Range):
		if *in.Range > 0 {
			order += math.Min(rangeWeightMax, *in.Range/MetersPerNM*rangeWeightPerNM)
		}
	case state != target.StateNone:
		// Alarmed without a position: last within its own bucket
		order += rangeWeightMax
	default:
		order += unknownRangePenalty
	}

	return clampOrder(order)
}

// linearFalloff is 1 at v == 0 and falls linearly to 0 at v == scale
func linearFalloff(v, scale float64) float64 {
	return math.Max(0, math.Min(1, 1-v/scale))
}

func clampOrder(order float64) int {
	if math.IsNaN(order) {
		return OrderLimit
	}
	return int(math.Round(math.Max(-OrderLimit, math.Min(OrderLimit, order))))
}
