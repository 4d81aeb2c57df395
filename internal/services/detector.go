package services

import (
	"price-checker/internal/models"
	"time"
)

// Transition classifies the result of comparing a new observation
// against a product's last-known state
type Transition string

const (
	TransitionFirstObservation    Transition = "first_observation"
	TransitionBecameAvailable     Transition = "became_available"
	TransitionRemainedAvailable   Transition = "remained_available"
	TransitionRemainedUnavailable Transition = "remained_unavailable"
	TransitionBecameUnavailable   Transition = "became_unavailable"
	TransitionPriceDecreased      Transition = "price_decreased"
	TransitionPriceIncreased      Transition = "price_increased"
	TransitionPriceUnchanged      Transition = "price_unchanged"
)

// Notification priority levels
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// ShouldNotify reports whether the transition warrants an alert.
// Only restocks and price drops alert; going out of stock is silent,
// and a first observation never alerts (avoids storms on initial seeding).
func (t Transition) ShouldNotify() bool {
	return t == TransitionBecameAvailable || t == TransitionPriceDecreased
}

// Priority maps transitions to notification priority: restock is high,
// everything else (price drop) is normal.
func (t Transition) Priority() string {
	if t == TransitionBecameAvailable {
		return PriorityHigh
	}
	return PriorityNormal
}

// Observation is the normalized result of one scrape attempt
type Observation struct {
	Kind      models.CheckKind
	Name      string
	Available *bool
	Price     *float64
	Currency  string
	Outcome   models.Outcome
	Detail    string
	CheckedAt time.Time
}

// Success reports whether the scrape produced usable data
func (o Observation) Success() bool {
	return o.Outcome == models.OutcomeSuccess
}

// Evaluate classifies a successful observation against the product's
// stored state. It does not mutate either argument, so calling it twice
// with the same pair yields the same transition.
//
// Precondition: the observation is successful and carries the field for
// its kind (the checker records a parse error otherwise).
func Evaluate(product *models.Product, obs Observation) Transition {
	switch obs.Kind {
	case models.KindPrice:
		if product.LastPrice == nil {
			return TransitionFirstObservation
		}
		switch {
		case *obs.Price < *product.LastPrice:
			return TransitionPriceDecreased
		case *obs.Price > *product.LastPrice:
			return TransitionPriceIncreased
		default:
			return TransitionPriceUnchanged
		}

	default: // models.KindAvailability
		if product.LastAvailable == nil {
			return TransitionFirstObservation
		}
		was, now := *product.LastAvailable, *obs.Available
		switch {
		case !was && now:
			return TransitionBecameAvailable
		case was && !now:
			return TransitionBecameUnavailable
		case now:
			return TransitionRemainedAvailable
		default:
			return TransitionRemainedUnavailable
		}
	}
}
