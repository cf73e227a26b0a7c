// SPDX-License-Identifier: MIT
package config

import (
	"github.com/careshift/careshift/internal/clinical"
	"github.com/careshift/careshift/internal/scheduler"
)

// SchedulerWeights builds the scoring weights: the v1 defaults with any
// configured modifiers applied. Zero means "not configured" so the defaults
// survive an empty environment.
func (c AppConfig) SchedulerWeights() scheduler.Weights {
	w := scheduler.DefaultWeights()
	if c.STATBonus > 0 {
		w.STATBonus = c.STATBonus
	}
	if c.PRNPenalty > 0 {
		w.PRNPenalty = c.PRNPenalty
	}

	acuity := map[clinical.AcuityLevel]float64{
		clinical.AcuityLow:      c.AcuityLow,
		clinical.AcuityMedium:   c.AcuityMedium,
		clinical.AcuityHigh:     c.AcuityHigh,
		clinical.AcuityCritical: c.AcuityCritical,
	}
	for level, v := range acuity {
		if v > 0 {
			w.Acuity[level] = v
		}
	}

	types := map[clinical.OrderType]float64{
		clinical.OrderMedication: c.TypeMedication,
		clinical.OrderProcedure:  c.TypeProcedure,
		clinical.OrderLab:        c.TypeLab,
		clinical.OrderAssessment: c.TypeAssessment,
	}
	for ot, v := range types {
		if v > 0 {
			w.OrderType[ot] = v
		}
	}
	return w
}
