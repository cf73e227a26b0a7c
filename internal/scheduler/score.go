// SPDX-License-Identifier: MIT

// Package scheduler turns a shift window, a patient assignment and a set of
// orders into a prioritized, explainable task timeline. Scoring is
// deliberately rules-based and deterministic: in a clinical setting the
// "why" of a priority has to be inspectable.
package scheduler

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/careshift/careshift/internal/clinical"
)

// Weights holds the scoring multipliers and modifiers. The defaults encode
// the v1 model: acuity amplifies everything, meds and procedures outrank labs,
// STAT is an additive bonus so it can break ties, PRN a small penalty so
// conditional orders are deprioritized without being buried.
type Weights struct {
	Acuity     map[clinical.AcuityLevel]float64
	OrderType  map[clinical.OrderType]float64
	STATBonus  float64
	PRNPenalty float64
}

// DefaultWeights returns the v1 scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Acuity: map[clinical.AcuityLevel]float64{
			clinical.AcuityLow:      1.0,
			clinical.AcuityMedium:   1.4,
			clinical.AcuityHigh:     1.8,
			clinical.AcuityCritical: 2.2,
		},
		OrderType: map[clinical.OrderType]float64{
			clinical.OrderMedication: 1.4,
			clinical.OrderProcedure:  1.3,
			clinical.OrderAssessment: 1.2,
			clinical.OrderLab:        1.1,
		},
		STATBonus:  1.5,
		PRNPenalty: 0.4,
	}
}

// ScoredOrder keeps an order together with its computed score, a human
// readable summary and the structured breakdown.
type ScoredOrder struct {
	Order     clinical.Order
	Patient   clinical.Patient
	Score     float64
	Summary   string
	Breakdown clinical.ScoreBreakdown
}

// minutesUntil returns how many minutes until due. Zero or negative means due
// now or overdue.
func minutesUntil(now, dueAt time.Time) float64 {
	return dueAt.Sub(now).Minutes()
}

// urgency converts time-until-due into an urgency factor. Overdue tasks get a
// high base that climbs with lateness but is capped so a wildly overdue task
// does not dominate everything forever. Future tasks decay toward a floor.
func urgency(minutesUntilDue float64) float64 {
	if minutesUntilDue <= 0 {
		overdue := -minutesUntilDue
		extra := overdue / 30.0
		if extra > 2.0 {
			extra = 2.0
		}
		return 3.0 + extra
	}
	u := 2.5 - minutesUntilDue/120.0
	if u < 0.2 {
		u = 0.2
	}
	return u
}

// ScoreOrders assigns a priority score to each order. Orders referencing a
// patient not on the assignment are skipped: that is a data quality problem,
// not a reason to fail the whole scheduling run. The result is sorted by
// score descending, earlier due time breaking ties.
func (w Weights) ScoreOrders(now time.Time, patientsByID map[string]clinical.Patient, orders []clinical.Order) []ScoredOrder {
	scored := make([]ScoredOrder, 0, len(orders))

	for _, o := range orders {
		p, ok := patientsByID[o.PatientID]
		if !ok {
			continue
		}

		mins := minutesUntil(now, o.DueAt)
		urg := urgency(mins)

		statBonus := 0.0
		if o.IsSTAT {
			statBonus = w.STATBonus
		}
		prnPenalty := 0.0
		if o.IsPRN {
			prnPenalty = w.PRNPenalty
		}

		score := w.Acuity[p.Acuity]*w.OrderType[o.Type]*urg + statBonus - prnPenalty

		summary := fmt.Sprintf("%s for %s (acuity: %s, due in ~%.0fm", o.Type, p.DisplayName, p.Acuity, mins)
		if o.IsSTAT {
			summary += ", STAT"
		}
		if o.IsPRN {
			summary += ", PRN"
		}
		summary += ")"

		scored = append(scored, ScoredOrder{
			Order:   o,
			Patient: p,
			Score:   score,
			Summary: summary,
			Breakdown: clinical.ScoreBreakdown{
				Acuity:       p.Acuity,
				OrderType:    o.Type,
				DueInMinutes: round1(mins),
				Urgency:      round2(urg),
				IsSTAT:       o.IsSTAT,
				IsPRN:        o.IsPRN,
			},
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Order.DueAt.Before(scored[j].Order.DueAt)
	})
	return scored
}

// Breakdown fields round half to even so exact ties land on the even digit
// (0.25 -> 0.2, 0.35 -> 0.4).
func round1(v float64) float64 { return math.RoundToEven(v*10) / 10 }
func round2(v float64) float64 { return math.RoundToEven(v*100) / 100 }
