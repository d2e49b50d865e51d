package cart

import (
	"fmt"
	"sort"
)

// LinePlan is one validated cart line ready to be committed: the snapshot
// fields come from the stall as read inside the transaction.
type LinePlan struct {
	StallID    string
	Product    string
	PriceCents int
	Quantity   int
}

// Policy decides how a checkout treats inventory. Exactly one policy is
// active per deployment; strict and deferred are mutually exclusive
// business rules, not composable features.
type Policy interface {
	Name() string

	// Plan runs inside the checkout transaction before any write. It
	// returns the lines to commit, or *StockError when validation fails.
	Plan(tx Tx, items []Item) ([]LinePlan, error)

	// DecrementsStock reports whether the commit pass reduces stall
	// quantity.
	DecrementsStock() bool
}

// StrictInventoryPolicy locks every referenced stall, validates all lines
// against live stock and decrements on commit. All-or-nothing: one bad
// line rejects the whole cart.
type StrictInventoryPolicy struct{}

func (StrictInventoryPolicy) Name() string          { return "strict" }
func (StrictInventoryPolicy) DecrementsStock() bool { return true }

func (StrictInventoryPolicy) Plan(tx Tx, items []Item) ([]LinePlan, error) {
	stalls, err := tx.LockStalls(distinctStallIDs(items))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]StallInfo, len(stalls))
	for _, s := range stalls {
		byID[s.ID] = s
	}

	var rejects []StockRejection
	plans := make([]LinePlan, 0, len(items))
	for _, it := range items {
		s, ok := byID[it.StallID]
		switch {
		case it.Quantity <= 0:
			rejects = append(rejects, StockRejection{StallID: it.StallID, Reason: ReasonInvalidQuantity})
		case !ok:
			rejects = append(rejects, StockRejection{StallID: it.StallID, Reason: ReasonNotFound})
		case s.Quantity <= 0:
			rejects = append(rejects, StockRejection{StallID: it.StallID, Reason: ReasonOutOfStock})
		case it.Quantity > s.Quantity:
			rejects = append(rejects, StockRejection{StallID: it.StallID, Reason: ReasonInsufficientStock, Available: s.Quantity})
		default:
			plans = append(plans, LinePlan{
				StallID:    s.ID,
				Product:    s.Product,
				PriceCents: s.PriceCents,
				Quantity:   it.Quantity,
			})
		}
	}
	if len(rejects) > 0 {
		return nil, &StockError{Items: rejects}
	}
	return plans, nil
}

// DeferredAcceptancePolicy skips stock checks, locks and decrements
// entirely. Every line becomes an order line at the stall's current price
// and the seller accepts or declines it later.
type DeferredAcceptancePolicy struct{}

func (DeferredAcceptancePolicy) Name() string          { return "deferred" }
func (DeferredAcceptancePolicy) DecrementsStock() bool { return false }

func (DeferredAcceptancePolicy) Plan(tx Tx, items []Item) ([]LinePlan, error) {
	stalls, err := tx.GetStalls(distinctStallIDs(items))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]StallInfo, len(stalls))
	for _, s := range stalls {
		byID[s.ID] = s
	}

	var rejects []StockRejection
	plans := make([]LinePlan, 0, len(items))
	for _, it := range items {
		s, ok := byID[it.StallID]
		switch {
		case it.Quantity <= 0:
			rejects = append(rejects, StockRejection{StallID: it.StallID, Reason: ReasonInvalidQuantity})
		case !ok:
			// a deleted stall cannot be snapshotted even here
			rejects = append(rejects, StockRejection{StallID: it.StallID, Reason: ReasonNotFound})
		default:
			plans = append(plans, LinePlan{
				StallID:    s.ID,
				Product:    s.Product,
				PriceCents: s.PriceCents,
				Quantity:   it.Quantity,
			})
		}
	}
	if len(rejects) > 0 {
		return nil, &StockError{Items: rejects}
	}
	return plans, nil
}

// PolicyByName resolves the configured checkout policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "strict":
		return StrictInventoryPolicy{}, nil
	case "deferred":
		return DeferredAcceptancePolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown checkout policy %q", name)
	}
}

func distinctStallIDs(items []Item) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it.StallID] {
			seen[it.StallID] = true
			ids = append(ids, it.StallID)
		}
	}
	sort.Strings(ids)
	return ids
}
