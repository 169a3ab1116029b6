package database

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

// Record пишет итог цикла в журнал. Журнал только для аудита,
// при старте станция его не читает.
func (d *Database) Record(ctx context.Context, rec models.InspectionRecord) error {
	detections := rec.Detections
	if detections == nil {
		detections = []models.Detection{}
	}
	data, err := json.Marshal(detections)
	if err != nil {
		return fmt.Errorf("failed to marshal detections: %w", err)
	}

	_, err = d.DB.ExecContext(ctx,
		"INSERT INTO inspections (cycle_id, board_id, outcome, has_defect, detections, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		rec.CycleID,
		rec.BoardID,
		string(rec.Outcome),
		rec.HasDefect,
		string(data),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert inspection %s: %w", rec.CycleID, err)
	}
	return nil
}
