package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// SeedFromProfiles builds one allocation per LP profile, weighted by
// commitment over the total commitment of all profiles.
func SeedFromProfiles(profiles []domain.LPProfile, netProceeds decimal.Decimal) []domain.LPAllocation {
	total := decimal.Zero
	for _, p := range profiles {
		total = total.Add(p.Commitment)
	}

	allocs := make([]domain.LPAllocation, 0, len(profiles))
	for _, p := range profiles {
		weight := divideOrZero(p.Commitment, total).Mul(hundred)
		a := domain.LPAllocation{
			ID:                  uuid.NewString(),
			LPID:                p.ID,
			LPName:              p.Name,
			Commitment:          p.Commitment,
			OwnershipPercentage: weight,
			ProRataPercentage:   weight,
			TaxWithholdingRate:  p.DefaultTaxRate,
			HasSpecialTerms:     p.HasSpecialTerms,
		}
		applyGross(&a, roundMoney(percentOf(netProceeds, weight)))
		allocs = append(allocs, a)
	}
	return allocs
}

// RecomputeAllocationAmounts re-derives amounts from each allocation's existing
// weight and the current net proceeds. Identities and tax rates (including
// overrides) are preserved; direct gross/net edits are replaced.
func RecomputeAllocationAmounts(allocs []domain.LPAllocation, netProceeds decimal.Decimal) []domain.LPAllocation {
	out := make([]domain.LPAllocation, len(allocs))
	for i, a := range allocs {
		applyGross(&a, roundMoney(percentOf(netProceeds, a.ProRataPercentage)))
		out[i] = a
	}
	return out
}

// applyGross sets gross and derives withholding and net from the current rate.
func applyGross(a *domain.LPAllocation, gross decimal.Decimal) {
	a.GrossAmount = gross
	a.TaxWithholdingAmount = roundMoney(percentOf(gross, a.TaxWithholdingRate))
	a.NetAmount = nonNegative(gross.Sub(a.TaxWithholdingAmount))
}

func findAllocation(allocs []domain.LPAllocation, lpID string) (int, error) {
	for i := range allocs {
		if allocs[i].LPID == lpID {
			return i, nil
		}
	}
	return -1, errors.NotFound("lp_allocation", lpID)
}

func updateAllocation(allocs []domain.LPAllocation, lpID string, fn func(*domain.LPAllocation)) ([]domain.LPAllocation, error) {
	idx, err := findAllocation(allocs, lpID)
	if err != nil {
		return allocs, err
	}
	out := append([]domain.LPAllocation(nil), allocs...)
	fn(&out[idx])
	return out, nil
}

// EditGrossAmount overwrites one allocation's gross amount. Net is left
// untouched; consistency is reported by the reconciliation warnings.
func EditGrossAmount(allocs []domain.LPAllocation, lpID string, amount decimal.Decimal) ([]domain.LPAllocation, error) {
	return updateAllocation(allocs, lpID, func(a *domain.LPAllocation) { a.GrossAmount = amount })
}

// EditNetAmount overwrites one allocation's net amount without touching gross.
func EditNetAmount(allocs []domain.LPAllocation, lpID string, amount decimal.Decimal) ([]domain.LPAllocation, error) {
	return updateAllocation(allocs, lpID, func(a *domain.LPAllocation) { a.NetAmount = amount })
}

// ConfirmLPAllocation toggles the confirmation flag.
func ConfirmLPAllocation(allocs []domain.LPAllocation, lpID string, confirmed bool) ([]domain.LPAllocation, error) {
	return updateAllocation(allocs, lpID, func(a *domain.LPAllocation) { a.IsConfirmed = confirmed })
}

// AllocationTotals sums the allocation columns.
type AllocationTotals struct {
	Gross   decimal.Decimal
	Tax     decimal.Decimal
	Net     decimal.Decimal
	ProRata decimal.Decimal
}

// SumAllocations totals every allocation.
func SumAllocations(allocs []domain.LPAllocation) AllocationTotals {
	t := AllocationTotals{Gross: decimal.Zero, Tax: decimal.Zero, Net: decimal.Zero, ProRata: decimal.Zero}
	for _, a := range allocs {
		t.Gross = t.Gross.Add(a.GrossAmount)
		t.Tax = t.Tax.Add(a.TaxWithholdingAmount)
		t.Net = t.Net.Add(a.NetAmount)
		t.ProRata = t.ProRata.Add(a.ProRataPercentage)
	}
	return t
}

// AllocationIssues returns per-row problems that block the allocation step.
func AllocationIssues(a domain.LPAllocation) []string {
	var issues []string
	name := displayName(a)
	if a.LPID == "" {
		issues = append(issues, "allocation is missing an LP reference")
	}
	if a.GrossAmount.IsNegative() {
		issues = append(issues, fmt.Sprintf("%s: gross amount cannot be negative", name))
	}
	if a.NetAmount.IsNegative() {
		issues = append(issues, fmt.Sprintf("%s: net amount cannot be negative", name))
	}
	if a.ProRataPercentage.IsNegative() {
		issues = append(issues, fmt.Sprintf("%s: pro-rata percentage cannot be negative", name))
	}
	if a.NetAmount.Sub(a.GrossAmount).GreaterThan(MonetaryTolerance) {
		issues = append(issues, fmt.Sprintf("%s: net amount %s exceeds gross amount %s",
			name, formatMoney(a.NetAmount), formatMoney(a.GrossAmount)))
	}
	return issues
}

// PriorNetAmounts finds the most recent non-draft distribution for the fund,
// preferring completed ones, and maps each LP to its previous net amount.
// It is display-only and never feeds a computation.
func PriorNetAmounts(history []domain.Distribution, fundID, excludeID string) map[string]decimal.Decimal {
	var candidates []domain.Distribution
	for _, d := range history {
		if d.FundID != fundID || d.ID == excludeID || d.IsDraft || d.Status == domain.StatusDraft {
			continue
		}
		candidates = append(candidates, d)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i].Status == domain.StatusCompleted, candidates[j].Status == domain.StatusCompleted
		if ci != cj {
			return ci
		}
		return recency(candidates[i]).After(recency(candidates[j]))
	})

	prior := make(map[string]decimal.Decimal, len(candidates[0].LPAllocations))
	for _, a := range candidates[0].LPAllocations {
		prior[a.LPID] = a.NetAmount
	}
	return prior
}

func recency(d domain.Distribution) time.Time {
	if d.CompletedAt != nil {
		return *d.CompletedAt
	}
	if !d.UpdatedAt.IsZero() {
		return d.UpdatedAt
	}
	return d.CreatedAt
}
