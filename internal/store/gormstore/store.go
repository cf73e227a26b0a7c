// SPDX-License-Identifier: MIT

// Package gormstore provides the Postgres-backed shift context store via GORM.
// It mirrors the semantics of the memory and sqlite backends and additionally
// archives generated plan snapshots as JSON rows.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/careshift/careshift/internal/clinical"
	"github.com/careshift/careshift/internal/store"
)

// Shift persists the single shift window row.
type Shift struct {
	ID      int64     `gorm:"primaryKey;check:id = 1"`
	StartAt time.Time `gorm:"not null"`
	EndAt   time.Time `gorm:"not null"`
}

// Patient persists one assigned patient.
type Patient struct {
	ID          string `gorm:"primaryKey"`
	DisplayName string `gorm:"type:varchar(200);not null"`
	Acuity      string `gorm:"type:varchar(16);not null"`
	Orders      []Order `gorm:"constraint:OnDelete:CASCADE"`
}

// Order persists one order.
type Order struct {
	ID              string    `gorm:"primaryKey"`
	PatientID       string    `gorm:"index;not null"`
	Type            string    `gorm:"type:varchar(16);not null"`
	Description     string    `gorm:"type:text;not null;default:''"`
	DueAt           time.Time `gorm:"not null"`
	DurationMinutes int       `gorm:"not null;default:0"`
	IsPRN           bool      `gorm:"not null;default:false"`
	IsSTAT          bool      `gorm:"not null;default:false"`
}

// Override persists one manual pin.
type Override struct {
	OrderID  string    `gorm:"primaryKey"`
	StartsAt time.Time `gorm:"not null"`
}

// Meta holds the revision counter and update timestamp.
type Meta struct {
	ID        int64 `gorm:"primaryKey;check:id = 1"`
	Revision  uint64
	UpdatedAt time.Time
}

// PlanSnapshot archives one generated plan as JSON.
type PlanSnapshot struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	Revision  uint64         `gorm:"index;not null"`
	Payload   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

// Store is the GORM/Postgres shift context store.
type Store struct {
	db *gorm.DB
	ch chan struct{}
}

// Open connects to Postgres with the given DSN and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: open failed: %w", err)
	}
	if err := db.AutoMigrate(&Patient{}, &Order{}, &Override{}, &Shift{}, &Meta{}, &PlanSnapshot{}); err != nil {
		return nil, fmt.Errorf("gormstore: migrate failed: %w", err)
	}
	return &Store{db: db, ch: make(chan struct{}, 1)}, nil
}

func (s *Store) Changes() <-chan struct{} { return s.ch }

func (s *Store) notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Snapshot(ctx context.Context) (store.Snapshot, error) {
	var snap store.Snapshot

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var shift Shift
		err := tx.First(&shift, "id = 1").Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// no shift configured yet
		case err != nil:
			return fmt.Errorf("gormstore: read shift: %w", err)
		default:
			snap.Shift = &clinical.Shift{StartAt: shift.StartAt.UTC(), EndAt: shift.EndAt.UTC()}
		}

		var patients []Patient
		if err := tx.Order("id").Find(&patients).Error; err != nil {
			return fmt.Errorf("gormstore: read patients: %w", err)
		}
		for _, p := range patients {
			snap.Patients = append(snap.Patients, clinical.Patient{
				ID:          p.ID,
				DisplayName: p.DisplayName,
				Acuity:      clinical.AcuityLevel(p.Acuity),
			})
		}

		var orders []Order
		if err := tx.Order("id").Find(&orders).Error; err != nil {
			return fmt.Errorf("gormstore: read orders: %w", err)
		}
		for _, o := range orders {
			snap.Orders = append(snap.Orders, clinical.Order{
				ID:              o.ID,
				PatientID:       o.PatientID,
				Type:            clinical.OrderType(o.Type),
				Description:     o.Description,
				DueAt:           o.DueAt.UTC(),
				DurationMinutes: o.DurationMinutes,
				IsPRN:           o.IsPRN,
				IsSTAT:          o.IsSTAT,
			})
		}

		var overrides []Override
		if err := tx.Order("order_id").Find(&overrides).Error; err != nil {
			return fmt.Errorf("gormstore: read overrides: %w", err)
		}
		for _, ov := range overrides {
			snap.Overrides = append(snap.Overrides, clinical.Override{
				OrderID:  ov.OrderID,
				StartsAt: ov.StartsAt.UTC(),
			})
		}

		var meta Meta
		err = tx.First(&meta, "id = 1").Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("gormstore: read meta: %w", err)
		}
		snap.Revision = meta.Revision
		snap.UpdatedAt = meta.UpdatedAt.UTC()
		return nil
	})
	return snap, err
}

func (s *Store) Reset(ctx context.Context) error {
	return s.mutate(ctx, func(tx *gorm.DB) error {
		for _, model := range []any{&Override{}, &Order{}, &Patient{}, &Shift{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return fmt.Errorf("gormstore: reset: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) SetShift(ctx context.Context, shift clinical.Shift) error {
	return s.mutate(ctx, func(tx *gorm.DB) error {
		row := Shift{ID: 1, StartAt: shift.StartAt.UTC(), EndAt: shift.EndAt.UTC()}
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("gormstore: set shift: %w", err)
		}
		return nil
	})
}

func (s *Store) ReplacePatients(ctx context.Context, patients []clinical.Patient) (int, error) {
	pruned := 0
	err := s.mutate(ctx, func(tx *gorm.DB) error {
		keep := make([]string, 0, len(patients))
		for _, p := range patients {
			keep = append(keep, p.ID)
		}

		var doomed []string
		q := tx.Model(&Order{})
		if len(keep) > 0 {
			q = q.Where("patient_id NOT IN ?", keep)
		}
		if err := q.Pluck("id", &doomed).Error; err != nil {
			return fmt.Errorf("gormstore: find pruned orders: %w", err)
		}
		pruned = len(doomed)

		if len(doomed) > 0 {
			if err := tx.Where("order_id IN ?", doomed).Delete(&Override{}).Error; err != nil {
				return fmt.Errorf("gormstore: prune overrides: %w", err)
			}
			if err := tx.Where("id IN ?", doomed).Delete(&Order{}).Error; err != nil {
				return fmt.Errorf("gormstore: prune orders: %w", err)
			}
		}

		// Delete only patients absent from the new list. Deleting everything
		// would cascade into the retained patients' orders as well.
		del := tx
		if len(keep) > 0 {
			del = del.Where("id NOT IN ?", keep)
		} else {
			del = del.Where("1 = 1")
		}
		if err := del.Delete(&Patient{}).Error; err != nil {
			return fmt.Errorf("gormstore: prune patients: %w", err)
		}
		for _, p := range patients {
			row := Patient{ID: p.ID, DisplayName: p.DisplayName, Acuity: string(p.Acuity)}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"display_name", "acuity"}),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("gormstore: upsert patient %q: %w", p.ID, err)
			}
		}
		return nil
	})
	return pruned, err
}

func (s *Store) AddOrder(ctx context.Context, order clinical.Order) error {
	return s.mutate(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Patient{}).Where("id = ?", order.PatientID).Count(&count).Error; err != nil {
			return fmt.Errorf("gormstore: check patient: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: %q", store.ErrUnknownPatient, order.PatientID)
		}
		if err := tx.Model(&Order{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("gormstore: check order: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %q", store.ErrOrderExists, order.ID)
		}
		row := Order{
			ID:              order.ID,
			PatientID:       order.PatientID,
			Type:            string(order.Type),
			Description:     order.Description,
			DueAt:           order.DueAt.UTC(),
			DurationMinutes: order.DurationMinutes,
			IsPRN:           order.IsPRN,
			IsSTAT:          order.IsSTAT,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("gormstore: insert order %q: %w", order.ID, err)
		}
		return nil
	})
}

func (s *Store) DeleteOrder(ctx context.Context, orderID string) error {
	return s.mutate(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).Delete(&Override{}).Error; err != nil {
			return fmt.Errorf("gormstore: delete override: %w", err)
		}
		res := tx.Where("id = ?", orderID).Delete(&Order{})
		if res.Error != nil {
			return fmt.Errorf("gormstore: delete order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %q", store.ErrOrderNotFound, orderID)
		}
		return nil
	})
}

func (s *Store) SetOverride(ctx context.Context, ov clinical.Override) error {
	return s.mutate(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Order{}).Where("id = ?", ov.OrderID).Count(&count).Error; err != nil {
			return fmt.Errorf("gormstore: check order: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: %q", store.ErrOrderNotFound, ov.OrderID)
		}
		row := Override{OrderID: ov.OrderID, StartsAt: ov.StartsAt.UTC()}
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("gormstore: set override: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteOverride(ctx context.Context, orderID string) error {
	return s.mutate(ctx, func(tx *gorm.DB) error {
		res := tx.Where("order_id = ?", orderID).Delete(&Override{})
		if res.Error != nil {
			return fmt.Errorf("gormstore: delete override: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %q", store.ErrOverrideNotFound, orderID)
		}
		return nil
	})
}

func (s *Store) LoadBundle(ctx context.Context, bundle clinical.ScheduleRequest) error {
	return s.mutate(ctx, func(tx *gorm.DB) error {
		for _, model := range []any{&Override{}, &Order{}, &Patient{}, &Shift{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return fmt.Errorf("gormstore: clear: %w", err)
			}
		}
		if err := tx.Create(&Shift{ID: 1, StartAt: bundle.Shift.StartAt.UTC(), EndAt: bundle.Shift.EndAt.UTC()}).Error; err != nil {
			return fmt.Errorf("gormstore: insert shift: %w", err)
		}
		for _, p := range bundle.Patients {
			if err := tx.Create(&Patient{ID: p.ID, DisplayName: p.DisplayName, Acuity: string(p.Acuity)}).Error; err != nil {
				return fmt.Errorf("gormstore: insert patient %q: %w", p.ID, err)
			}
		}
		for _, o := range bundle.Orders {
			row := Order{
				ID: o.ID, PatientID: o.PatientID, Type: string(o.Type), Description: o.Description,
				DueAt: o.DueAt.UTC(), DurationMinutes: o.DurationMinutes, IsPRN: o.IsPRN, IsSTAT: o.IsSTAT,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("gormstore: insert order %q: %w", o.ID, err)
			}
		}
		for _, ov := range bundle.Overrides {
			if err := tx.Create(&Override{OrderID: ov.OrderID, StartsAt: ov.StartsAt.UTC()}).Error; err != nil {
				return fmt.Errorf("gormstore: insert override %q: %w", ov.OrderID, err)
			}
		}
		return nil
	})
}

// ArchivePlan stores a generated plan snapshot as a JSON row. The replan
// worker calls this when the active store supports archiving.
func (s *Store) ArchivePlan(ctx context.Context, plan clinical.ScheduleResponse) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("gormstore: marshal plan: %w", err)
	}
	row := PlanSnapshot{Revision: plan.Revision, Payload: datatypes.JSON(payload)}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("gormstore: archive plan: %w", err)
	}
	return nil
}

// mutate runs fn in a transaction and bumps the revision on success.
func (s *Store) mutate(ctx context.Context, fn func(*gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		var meta Meta
		err := tx.First(&meta, "id = 1").Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("gormstore: read meta: %w", err)
		}
		meta.ID = 1
		meta.Revision++
		meta.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&meta).Error; err != nil {
			return fmt.Errorf("gormstore: bump meta: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notify()
	return nil
}
