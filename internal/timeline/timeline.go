// Package timeline reconstructs display timestamps for an order's status
// history. The backend only records when an order was created and last
// updated, so the steps in between are spread evenly across that span.
package timeline

import (
	"math"
	"time"

	"storefront-bff/internal/models"
)

type Step struct {
	Status  models.OrderStatus `json:"status"`
	Label   string             `json:"label"`
	At      *time.Time         `json:"at,omitempty"`
	Reached bool               `json:"reached"`
	Current bool               `json:"current"`
}

// Build lays the order out over the lifecycle. Steps up to the current
// status get interpolated times between CreatedAt and the completion time
// (UpdatedAt, or now when UpdatedAt is unset or earlier than CreatedAt).
// Later steps have no time.
func Build(order models.Order, now time.Time) []Step {
	created := order.CreatedAt
	done := order.UpdatedAt
	if done.IsZero() || done.Before(created) {
		done = now
	}
	if done.Before(created) {
		done = created
	}

	if order.Status == models.StatusCancelled {
		return []Step{
			reached(models.StatusPending, created, false),
			reached(models.StatusCancelled, done, true),
		}
	}

	current := order.Status.Index()
	if current < 0 {
		current = 0
	}

	steps := make([]Step, len(models.Lifecycle))
	for i, st := range models.Lifecycle {
		if i > current {
			steps[i] = Step{Status: st, Label: st.Label()}
			continue
		}
		steps[i] = reached(st, interpolate(created, done, i, current), i == current)
	}
	return steps
}

// interpolate returns the i-th of n even steps from start to end. The last
// step is end itself.
func interpolate(start, end time.Time, i, n int) time.Time {
	switch {
	case i <= 0:
		return start
	case i >= n:
		return end
	}
	span := end.Sub(start)
	if span < time.Duration(math.MaxInt64) {
		return start.Add(span / time.Duration(n) * time.Duration(i))
	}
	// Sub saturated: the span is longer than a Duration can hold.
	secs := end.Unix() - start.Unix()
	return time.Unix(start.Unix()+secs/int64(n)*int64(i), 0).In(start.Location())
}

func reached(st models.OrderStatus, at time.Time, current bool) Step {
	return Step{Status: st, Label: st.Label(), At: &at, Reached: true, Current: current}
}
