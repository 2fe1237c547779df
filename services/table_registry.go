package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/billiard-hall/billing"
	"github.com/yeremiapane/billiard-hall/hub"
	"github.com/yeremiapane/billiard-hall/lock"
	"github.com/yeremiapane/billiard-hall/models"
	"github.com/yeremiapane/billiard-hall/utils"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// TableInput carries the editable fields of a table. Nil fields are left as
// they are on update and take their defaults on create.
type TableInput struct {
	Number     *int             `json:"number"`
	Name       *string          `json:"name"`
	Class      *string          `json:"class"`
	HourlyRate *decimal.Decimal `json:"hourly_rate"`
	Status     *string          `json:"status"`
	Color      *string          `json:"color"`
}

// TableView is a table together with its open session, if any, and the
// minutes and cost that session has accrued so far.
type TableView struct {
	models.Table
	Session *models.Session  `json:"session,omitempty"`
	Minutes int              `json:"minutes"`
	Cost    *decimal.Decimal `json:"cost,omitempty"`
}

type TableRegistry struct {
	db        *gorm.DB
	sessions  *SessionStore
	locks     lock.Locker
	publisher hub.Publisher
	Now       func() time.Time
}

func NewTableRegistry(db *gorm.DB, sessions *SessionStore, locks lock.Locker, publisher hub.Publisher) *TableRegistry {
	if locks == nil {
		locks = lock.NewKeyedMutex()
	}
	if publisher == nil {
		publisher = hub.Discard{}
	}
	return &TableRegistry{
		db:        db,
		sessions:  sessions,
		locks:     locks,
		publisher: publisher,
		Now:       time.Now,
	}
}

func tableKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (r *TableRegistry) Get(ctx context.Context, id uint) (models.Table, error) {
	if id == 0 {
		return models.Table{}, fmt.Errorf("%w: table id is required", ErrValidation)
	}
	return findTable(r.db.WithContext(ctx), id)
}

// get reads a table inside tx, locking the row where the dialect supports it.
func (r *TableRegistry) get(tx *gorm.DB, id uint) (models.Table, error) {
	return findTable(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func findTable(q *gorm.DB, id uint) (models.Table, error) {
	var table models.Table
	err := q.First(&table, id).Error
	if err != nil {
		return models.Table{}, storageErr(err, fmt.Sprintf("table %d", id))
	}
	return table, nil
}

// List returns every table ordered by number.
func (r *TableRegistry) List(ctx context.Context) ([]models.Table, error) {
	var tables []models.Table
	if err := r.db.WithContext(ctx).Order("number ASC").Find(&tables).Error; err != nil {
		return nil, storageErr(err, "list tables")
	}
	return tables, nil
}

// ListWithSessions is the floor view: every table with its open session and
// the live minutes and cost of that session.
func (r *TableRegistry) ListWithSessions(ctx context.Context) ([]TableView, error) {
	tables, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	open, err := r.sessions.OpenByTable(ctx)
	if err != nil {
		return nil, err
	}

	now := r.Now()
	views := make([]TableView, 0, len(tables))
	for _, t := range tables {
		var s *models.Session
		if found, ok := open[t.ID]; ok {
			s = &found
		}
		views = append(views, viewOf(t, s, now))
	}
	return views, nil
}

// View returns a single table with its open session.
func (r *TableRegistry) View(ctx context.Context, id uint) (TableView, error) {
	table, err := r.Get(ctx, id)
	if err != nil {
		return TableView{}, err
	}
	s, err := r.sessions.Open(ctx, id)
	if err != nil {
		return TableView{}, err
	}
	return viewOf(table, s, r.Now()), nil
}

func viewOf(t models.Table, s *models.Session, now time.Time) TableView {
	v := TableView{Table: t, Session: s}
	if s != nil {
		minutes, cost := liveCost(*s, t.HourlyRate, now)
		v.Minutes = minutes
		v.Cost = &cost
	}
	return v
}

// liveCost bills an open session at rate up to now. Paused time is excluded.
func liveCost(s models.Session, rate decimal.Decimal, now time.Time) (int, decimal.Decimal) {
	start, end := billing.Window(s.StartedAt, s.PausedFor(), s.PausedAt, now)
	return billing.Compute(start, end, rate)
}

func (r *TableRegistry) Create(ctx context.Context, in TableInput) (models.Table, error) {
	if in.Number == nil {
		return models.Table{}, fmt.Errorf("%w: number is required", ErrValidation)
	}
	table := models.Table{
		Class:  models.ClassPool,
		Status: models.TableAvailable,
		Color:  models.DefaultTableColor,
	}
	if err := applyTableInput(&table, in); err != nil {
		return models.Table{}, err
	}
	if table.Status == models.TableOccupied {
		return models.Table{}, fmt.Errorf("%w: a new table cannot start occupied", ErrValidation)
	}
	if table.Name == "" {
		table.Name = fmt.Sprintf("Mesa %d", table.Number)
	}

	if err := r.db.WithContext(ctx).Create(&table).Error; err != nil {
		return models.Table{}, storageErr(err, fmt.Sprintf("table number %d already exists", table.Number))
	}

	utils.InfoLogger.Printf("Table %d created (%s, %s/h)", table.Number, table.Class, utils.FormatCurrency(table.HourlyRate))
	r.publisher.Publish(hub.TableCreated(table))
	return table, nil
}

// Update edits a table. Occupancy belongs to the session engine: status
// occupied cannot be set here, and an occupied table keeps its status until
// its session ends. Rate, name, color and class may change at any time.
func (r *TableRegistry) Update(ctx context.Context, id uint, in TableInput) (models.Table, error) {
	if id == 0 {
		return models.Table{}, fmt.Errorf("%w: table id is required", ErrValidation)
	}
	if in.Status != nil && *in.Status == models.TableOccupied {
		return models.Table{}, fmt.Errorf("%w: status occupied is managed by sessions", ErrValidation)
	}

	release, err := r.locks.Lock(ctx, tableKey(id))
	if err != nil {
		return models.Table{}, fmt.Errorf("%w: lock table %d: %v", ErrStorage, id, err)
	}
	defer release()

	var table models.Table
	var open *models.Session
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := r.get(tx, id)
		if err != nil {
			return err
		}
		if in.Status != nil && *in.Status != current.Status {
			s, err := r.sessions.open(tx, id)
			if err != nil {
				return err
			}
			if s != nil {
				return fmt.Errorf("%w: table %d has open session %d", ErrConflict, id, s.ID)
			}
		}

		table = current
		if err := applyTableInput(&table, in); err != nil {
			return err
		}
		if err := tx.Save(&table).Error; err != nil {
			return storageErr(err, fmt.Sprintf("table number %d already exists", table.Number))
		}

		open, err = r.sessions.open(tx, id)
		return err
	})
	if err != nil {
		return models.Table{}, storageErr(err, fmt.Sprintf("update table %d", id))
	}

	r.publisher.Publish(hub.TableUpdated(table, open))
	return table, nil
}

func (r *TableRegistry) Delete(ctx context.Context, id uint) error {
	if id == 0 {
		return fmt.Errorf("%w: table id is required", ErrValidation)
	}

	release, err := r.locks.Lock(ctx, tableKey(id))
	if err != nil {
		return fmt.Errorf("%w: lock table %d: %v", ErrStorage, id, err)
	}
	defer release()

	var number int
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		table, err := r.get(tx, id)
		if err != nil {
			return err
		}
		s, err := r.sessions.open(tx, id)
		if err != nil {
			return err
		}
		if s != nil {
			return fmt.Errorf("%w: table %d has open session %d", ErrConflict, id, s.ID)
		}
		number = table.Number
		return tx.Delete(&models.Table{}, id).Error
	})
	if err != nil {
		return storageErr(err, fmt.Sprintf("delete table %d", id))
	}

	utils.InfoLogger.Printf("Table %d deleted", number)
	r.publisher.Publish(hub.TableDeleted(id))
	return nil
}

// CountByStatus returns the number of tables in each status, including zero
// counts for statuses no table is in.
func (r *TableRegistry) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Table{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr(err, "count tables")
	}

	counts := map[string]int64{
		models.TableAvailable:   0,
		models.TableOccupied:    0,
		models.TableMaintenance: 0,
		models.TableReserved:    0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// rates returns the current hourly rate of each listed table.
func (r *TableRegistry) rates(ctx context.Context, ids []uint) (map[uint]decimal.Decimal, error) {
	out := make(map[uint]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var tables []models.Table
	err := r.db.WithContext(ctx).Select("id", "hourly_rate").Where("id IN ?", ids).Find(&tables).Error
	if err != nil {
		return nil, storageErr(err, "table rates")
	}
	for _, t := range tables {
		out[t.ID] = t.HourlyRate
	}
	return out, nil
}

// setOccupancy moves a table from one status to another inside tx. It fails
// with ErrConflict when the table is not in the expected status.
func (r *TableRegistry) setOccupancy(tx *gorm.DB, id uint, from, to string) error {
	res := tx.Model(&models.Table{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return storageErr(res.Error, fmt.Sprintf("table %d status", id))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: table %d is not %s", ErrConflict, id, from)
	}
	return nil
}

func applyTableInput(t *models.Table, in TableInput) error {
	if in.Number != nil {
		if *in.Number < 1 {
			return fmt.Errorf("%w: number must be at least 1", ErrValidation)
		}
		t.Number = *in.Number
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len(name) > 50 {
			return fmt.Errorf("%w: name is longer than 50 characters", ErrValidation)
		}
		t.Name = name
	}
	if in.Class != nil {
		if !models.IsTableClass(*in.Class) {
			return fmt.Errorf("%w: unknown class %q", ErrValidation, *in.Class)
		}
		t.Class = *in.Class
	}
	if in.HourlyRate != nil {
		if in.HourlyRate.IsNegative() {
			return fmt.Errorf("%w: hourly rate must not be negative", ErrValidation)
		}
		t.HourlyRate = in.HourlyRate.Round(2)
	}
	if in.Status != nil {
		if !models.IsTableStatus(*in.Status) {
			return fmt.Errorf("%w: unknown status %q", ErrValidation, *in.Status)
		}
		t.Status = *in.Status
	}
	if in.Color != nil {
		if !colorPattern.MatchString(*in.Color) {
			return fmt.Errorf("%w: color must look like #rrggbb", ErrValidation)
		}
		t.Color = *in.Color
	}
	return nil
}
