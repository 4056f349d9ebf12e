package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/database"
	"github.com/ds124wfegd/gymbooker/internal/entity"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

type classService struct {
	store   database.Store
	horizon entity.Horizon
	now     Clock
}

func NewClassService(store database.Store, horizon entity.Horizon, now Clock) ClassService {
	if now == nil {
		now = time.Now
	}
	return &classService{store: store, horizon: horizon, now: now}
}

// buildSchedule merges the explicit schedule with the expanded ranges.
func buildSchedule(req *ClassRequest) (entity.Schedule, error) {
	schedule := entity.Schedule{}
	for d, times := range req.Schedule {
		schedule[d] = append(schedule[d], times...)
	}
	for _, r := range req.Ranges {
		if err := r.Expand(schedule); err != nil {
			return nil, err
		}
	}
	return schedule.Normalize()
}

func validateClass(req *ClassRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: class name is required", entity.ErrInvalidInput)
	}
	if req.MaxCapacity < 0 {
		return fmt.Errorf("%w: capacity must be positive", entity.ErrInvalidInput)
	}
	return nil
}

// CreateClass создает занятие с расписанием
func (s *classService) CreateClass(ctx context.Context, req *ClassRequest) (*entity.Class, error) {
	if err := validateClass(req); err != nil {
		return nil, err
	}
	schedule, err := buildSchedule(req)
	if err != nil {
		return nil, err
	}

	capacity := req.MaxCapacity
	if capacity == 0 {
		capacity = entity.DefaultMaxCapacity
	}

	class := &entity.Class{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		MaxCapacity: capacity,
		Schedule:    schedule,
	}
	if err := s.store.Classes().Create(ctx, class); err != nil {
		return nil, fmt.Errorf("failed to create class: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"class_id": class.ID,
		"name":     class.Name,
		"slots":    len(schedule.Slots()),
	}).Info("Class created")
	return class, nil
}

// UpdateClass replaces the class definition. Capacity cannot drop below the
// busiest slot and slots holding reservations cannot be removed.
func (s *classService) UpdateClass(ctx context.Context, id string, req *ClassRequest) (*entity.Class, error) {
	if err := validateClass(req); err != nil {
		return nil, err
	}
	schedule, err := buildSchedule(req)
	if err != nil {
		return nil, err
	}

	var updated *entity.Class
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx database.Repositories) error {
		class, err := tx.Classes().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		occupancy, err := tx.Slots().ListOccupancy(ctx, id)
		if err != nil {
			return err
		}

		capacity := req.MaxCapacity
		if capacity == 0 {
			capacity = class.MaxCapacity
		}
		if capacity < occupancy.Max() {
			return fmt.Errorf("%w: %d reserved, capacity %d", entity.ErrCapacityBelowOccupancy, occupancy.Max(), capacity)
		}
		for key, n := range occupancy {
			if n == 0 {
				continue
			}
			slot, err := entity.ParseSlotKey(key)
			if err != nil {
				return err
			}
			if !schedule.Has(slot) {
				return fmt.Errorf("%w: %s", entity.ErrSlotHasReservations, slot)
			}
		}

		class.Name = strings.TrimSpace(req.Name)
		class.Description = req.Description
		class.MaxCapacity = capacity
		class.Schedule = schedule
		if err := tx.Classes().Update(ctx, class); err != nil {
			return err
		}
		updated = class
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithField("class_id", id).Info("Class updated")
	return updated, nil
}

func (s *classService) DeleteClass(ctx context.Context, id string) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx database.Repositories) error {
		if _, err := tx.Classes().GetForUpdate(ctx, id); err != nil {
			return err
		}
		counts, err := tx.Reservations().CountByClass(ctx, id)
		if err != nil {
			return err
		}
		if len(counts) > 0 {
			return entity.ErrClassHasReservations
		}
		return tx.Classes().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	logrus.WithField("class_id", id).Info("Class deleted")
	return nil
}

func (s *classService) GetClass(ctx context.Context, id string) (*entity.Class, error) {
	return s.store.Classes().GetByID(ctx, id)
}

func (s *classService) ListClasses(ctx context.Context) ([]*entity.Class, error) {
	return s.store.Classes().List(ctx)
}

// Availability lists the class slots inside the booking window. Members only
// see slots with free places; administrators see every slot.
func (s *classService) Availability(ctx context.Context, classID string, viewer *entity.User) (*entity.ClassAvailability, error) {
	class, err := s.store.Classes().GetByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	occupancy, err := s.store.Slots().ListOccupancy(ctx, classID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &entity.ClassAvailability{ClassID: class.ID, ClassName: class.Name, Slots: []entity.SlotAvailability{}}
	for _, slot := range class.Schedule.Slots() {
		if !s.horizon.Contains(slot.Date, now) {
			continue
		}
		reserved := occupancy.Get(slot)
		available := class.MaxCapacity - reserved
		if available < 0 {
			available = 0
		}
		full := available == 0
		if full && !viewer.IsAdmin() {
			continue
		}
		result.Slots = append(result.Slots, entity.SlotAvailability{
			Slot:      slot,
			Reserved:  reserved,
			Capacity:  class.MaxCapacity,
			Available: available,
			Full:      full,
		})
	}
	return result, nil
}

func (s *classService) Roster(ctx context.Context, classID string, slot entity.Slot) ([]*entity.RosterEntry, error) {
	if _, err := s.store.Classes().GetByID(ctx, classID); err != nil {
		return nil, err
	}
	return s.store.Reservations().ListBySlot(ctx, classID, slot)
}

var rosterHeader = []interface{}{"Fecha", "Horario", "Nombre", "Apellidos", "DNI", "Reservado"}

// ExportRoster builds an XLSX workbook with one row per reservation.
func (s *classService) ExportRoster(ctx context.Context, classID, from, to string) ([]byte, error) {
	class, err := s.store.Classes().GetByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	for _, bound := range []*string{&from, &to} {
		if *bound == "" {
			continue
		}
		if *bound, err = entity.CanonicalDate(*bound); err != nil {
			return nil, err
		}
	}

	roster, err := s.store.Reservations().ListByClass(ctx, classID, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logrus.Warnf("Failed to close workbook: %v", err)
		}
	}()

	sheet := sheetName(class.Name)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &rosterHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, e := range roster {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{e.Date, e.Time, e.Name, e.Surname, e.DNI, e.CreatedAt.Format(time.RFC3339)}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName trims the class name to Excel's 31-character limit and strips
// characters that are not allowed in sheet names.
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return -1
		}
		return r
	}, name)
	if name == "" {
		return "Roster"
	}
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}
