package wizard

import (
	"context"

	"github.com/shopspring/decimal"
)

// The recomputation graph keeps the four derived slots consistent with their
// inputs:
//
//	branches+categories <- merchantId
//	totalAmount         <- items (computed inline, never fetched)
//	products            <- (merchantId, totalAmount)
//	calculation         <- (productId, termMonths, totalAmount)
//
// Each recompute clears the slot and its dependent selections first, then
// fetches asynchronously. A fetch result is keyed by the dependency tuple
// captured at call time and discarded if the tuple has moved on by the time
// it resolves, so the most recent inputs always win regardless of response
// ordering. A failed fetch leaves the slot empty; no automatic retry.
//
// All recompute methods expect the session lock to be held by the caller.

// spawn runs fn on its own goroutine, tracked so Settle can wait for it.
// Fetches outlive the triggering request, so they get a fresh context; the
// transport layer owns timeouts.
func (s *Session) spawn(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(context.Background())
	}()
}

func (s *Session) recomputeBranchesAndCategories() {
	s.Branches = nil
	s.Categories = nil
	s.BranchID = ""
	s.fetchBranchesAndCategories()
}

func (s *Session) fetchBranchesAndCategories() {
	merchant := s.MerchantID
	if merchant == "" {
		return
	}

	s.spawn(func(ctx context.Context) {
		branches, bErr := s.deps.Catalog.Branches(ctx, merchant)
		categories, cErr := s.deps.Catalog.Categories(ctx, merchant)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.MerchantID != merchant {
			return // superseded
		}
		if bErr != nil {
			s.log.Warn("branch lookup failed", map[string]interface{}{"merchant_id": merchant, "error": bErr.Error()})
			s.Branches = nil
		} else {
			s.Branches = branches
		}
		if cErr != nil {
			s.log.Warn("category lookup failed", map[string]interface{}{"merchant_id": merchant, "error": cErr.Error()})
			s.Categories = nil
		} else {
			s.Categories = categories
		}
	})
}

func (s *Session) recomputeProducts() {
	s.Products = nil
	s.ProductID = ""
	s.TermMonths = 0
	s.Calculation = nil
	s.fetchProducts()
}

func (s *Session) fetchProducts() {
	merchant := s.MerchantID
	total := s.totalLocked()
	if merchant == "" || !total.IsPositive() {
		return
	}

	s.spawn(func(ctx context.Context) {
		products, err := s.deps.Catalog.EligibleProducts(ctx, merchant, total)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.MerchantID != merchant || !s.totalLocked().Equal(total) {
			return // superseded
		}
		if err != nil {
			s.log.Warn("eligible product lookup failed", map[string]interface{}{
				"merchant_id": merchant,
				"total":       total.String(),
				"error":       err.Error(),
			})
			s.Products = nil
			return
		}
		s.Products = products
	})
}

func (s *Session) recomputeCalculation() {
	s.Calculation = nil
	s.fetchCalculation()
}

func (s *Session) fetchCalculation() {
	product := s.ProductID
	term := s.TermMonths
	total := s.totalLocked()
	if product == "" || term <= 0 || !total.IsPositive() {
		return
	}

	s.spawn(func(ctx context.Context) {
		calc, err := s.deps.Calc.Calculate(ctx, product, total, term)

		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.calcTupleCurrent(product, term, total) {
			return // superseded
		}
		if err != nil {
			s.log.Warn("payment plan calculation failed", map[string]interface{}{
				"product_id": product,
				"term":       term,
				"total":      total.String(),
				"error":      err.Error(),
			})
			s.Calculation = nil
			return
		}
		s.Calculation = calc
	})
}

func (s *Session) calcTupleCurrent(product string, term int, total decimal.Decimal) bool {
	return s.ProductID == product && s.TermMonths == term && s.totalLocked().Equal(total)
}

// resumeFetches re-issues fetches for derived slots whose dependency is set
// but whose value is missing. A snapshot taken while a fetch was in flight
// loses the result; without this a restored session would hold the selection
// forever with an empty slot, since re-selecting the same value is a no-op.
// Selections are left intact: only the fetches run again. Caller holds the
// session lock.
func (s *Session) resumeFetches() {
	if s.MerchantID != "" && s.Branches == nil && s.Categories == nil {
		s.fetchBranchesAndCategories()
	}
	if s.Products == nil {
		s.fetchProducts()
	}
	if s.Calculation == nil {
		s.fetchCalculation()
	}
	if s.Capture.Stage == CaptureParsing {
		s.parseIdentity()
	}
}
