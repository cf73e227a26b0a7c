// SPDX-License-Identifier: MIT

// Package ingest feeds simulated EHR data into the clinical state store. It
// accepts complete bundles (a shift window plus patients and orders) from
// JSON files, a Kafka topic, or direct API upload.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/careshift/careshift/internal/clinical"
	"github.com/careshift/careshift/internal/log"
	"github.com/careshift/careshift/internal/metrics"
	"github.com/careshift/careshift/internal/store"
)

// ParseBundle decodes a JSON bundle. Unknown fields are rejected so typos in
// hand-edited payloads surface as errors instead of silently dropped data.
func ParseBundle(r io.Reader) (clinical.ScheduleRequest, error) {
	var bundle clinical.ScheduleRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&bundle); err != nil {
		return clinical.ScheduleRequest{}, fmt.Errorf("ingest: decode bundle: %w", err)
	}
	Normalize(&bundle)
	return bundle, nil
}

// Normalize cleans free-text fields in place. Exported EHR data arrives with
// mixed Unicode forms; NFC keeps display names comparable.
func Normalize(bundle *clinical.ScheduleRequest) {
	for i := range bundle.Patients {
		bundle.Patients[i].DisplayName = CleanText(bundle.Patients[i].DisplayName)
	}
	for i := range bundle.Orders {
		bundle.Orders[i].Description = CleanText(bundle.Orders[i].Description)
	}
}

// CleanText trims whitespace and normalizes to NFC.
func CleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Loader validates bundles and loads them into the store.
type Loader struct {
	store store.Store
}

func NewLoader(s store.Store) *Loader {
	return &Loader{store: s}
}

// Apply validates and atomically installs a bundle. source labels the ingest
// path for metrics and logs.
func (l *Loader) Apply(ctx context.Context, bundle clinical.ScheduleRequest, source string) error {
	logger := log.WithComponentFromContext(ctx, "ingest")

	if err := bundle.Validate(); err != nil {
		metrics.IncIngestBundle(source, "invalid")
		logger.Warn().
			Err(err).
			Str("event", "ingest.bundle_invalid").
			Str("source", source).
			Msg("rejected invalid bundle")
		return err
	}

	if err := l.store.LoadBundle(ctx, bundle); err != nil {
		metrics.IncIngestBundle(source, "error")
		return fmt.Errorf("ingest: load bundle: %w", err)
	}

	metrics.IncIngestBundle(source, "success")
	logger.Info().
		Str("event", "ingest.bundle_loaded").
		Str("source", source).
		Int("patients", len(bundle.Patients)).
		Int("orders", len(bundle.Orders)).
		Msg("bundle loaded")
	return nil
}
