// SPDX-License-Identifier: MIT
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/renameio/v2"

	"github.com/careshift/careshift/internal/clinical"
	"github.com/careshift/careshift/internal/log"
)

// ExportPlan writes the plan as JSON with atomic replace semantics. Readers
// of the export file (wall displays, hand-off scripts) never observe a
// partially written plan: fsync happens before rename.
func ExportPlan(ctx context.Context, path string, plan clinical.ScheduleResponse) error {
	logger := log.WithComponentFromContext(ctx, "export")

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending plan file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending plan file")
		}
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plan); err != nil {
		return fmt.Errorf("write plan data: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace plan file: %w", err)
	}

	return nil
}
