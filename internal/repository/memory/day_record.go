package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/google/uuid"
)

type dayRecordRepository struct {
	store *Store
}

func dayKey(companyID, employeeID string, date time.Time) string {
	return companyID + "/" + employeeID + "/" + date.Format("2006-01-02")
}

// GetDayRecord implements timetrack.DayRecordRepository.
func (r *dayRecordRepository) GetDayRecord(ctx context.Context, employeeID string, date time.Time, companyID string) (timetrack.DayRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	record, ok := r.store.days[dayKey(companyID, employeeID, date)]
	if !ok {
		return timetrack.DayRecord{}, timetrack.ErrDayNotFound
	}
	return record.Clone(), nil
}

// SaveDayRecord implements timetrack.DayRecordRepository.
func (r *dayRecordRepository) SaveDayRecord(ctx context.Context, record timetrack.DayRecord) (timetrack.DayRecord, error) {
	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return timetrack.DayRecord{}, err
		}
		record.ID = id.String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := dayKey(record.CompanyID, record.EmployeeID, record.Date)
	if stored, ok := r.store.days[key]; ok {
		if stored.ID != record.ID {
			return timetrack.DayRecord{}, fmt.Errorf("%w: %s", timetrack.ErrConcurrentUpdate, key)
		}
		for _, ev := range stored.Events {
			if record.EventByID(ev.ID) < 0 {
				return timetrack.DayRecord{}, fmt.Errorf("%w: %s", timetrack.ErrEventRemoved, ev.ID)
			}
		}
	}

	r.store.days[key] = record.Clone()
	return record.Clone(), nil
}

// ListDayRecords implements timetrack.DayRecordRepository.
func (r *dayRecordRepository) ListDayRecords(ctx context.Context, employeeID string, start, end time.Time, companyID string) ([]timetrack.DayRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var records []timetrack.DayRecord
	for _, record := range r.store.days {
		if record.EmployeeID != employeeID || record.CompanyID != companyID {
			continue
		}
		if record.Date.Before(start) || record.Date.After(end) {
			continue
		}
		records = append(records, record.Clone())
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}

// ListOpenDaysBefore implements timetrack.DayRecordRepository.
func (r *dayRecordRepository) ListOpenDaysBefore(ctx context.Context, before time.Time) ([]timetrack.DayRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var records []timetrack.DayRecord
	for _, record := range r.store.days {
		if record.Status == timetrack.DayStatusOpen && record.Date.Before(before) {
			records = append(records, record.Clone())
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].EmployeeID < records[j].EmployeeID
	})
	return records, nil
}

func NewDayRecordRepository(store *Store) timetrack.DayRecordRepository {
	return &dayRecordRepository{store: store}
}
