package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/billiard-hall/hub"
	"github.com/yeremiapane/billiard-hall/models"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestListOrderedByNumber(t *testing.T) {
	f := newFixture(t)

	_, err := f.tables.Create(context.Background(), TableInput{Number: intPtr(10), HourlyRate: decPtr(12000)})
	require.NoError(t, err)

	tables, err := f.tables.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 6)
	for i := 1; i < len(tables); i++ {
		assert.Less(t, tables[i-1].Number, tables[i].Number)
	}
}

func TestCreateTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	table, err := f.tables.Create(ctx, TableInput{Number: intPtr(6), HourlyRate: decPtr(16000)})
	require.NoError(t, err)
	assert.NotZero(t, table.ID)
	assert.Equal(t, "Mesa 6", table.Name)
	assert.Equal(t, models.ClassPool, table.Class)
	assert.Equal(t, models.TableAvailable, table.Status)
	assert.Equal(t, models.DefaultTableColor, table.Color)
	assert.Equal(t, []string{hub.EventTableCreated}, f.events.names())
}

func TestCreateTableRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   TableInput
		want error
	}{
		{"missing number", TableInput{Name: strPtr("x")}, ErrValidation},
		{"number below one", TableInput{Number: intPtr(0)}, ErrValidation},
		{"duplicate number", TableInput{Number: intPtr(1)}, ErrConflict},
		{"unknown class", TableInput{Number: intPtr(7), Class: strPtr("bowling")}, ErrValidation},
		{"negative rate", TableInput{Number: intPtr(7), HourlyRate: decPtr(-1)}, ErrValidation},
		{"bad color", TableInput{Number: intPtr(7), Color: strPtr("red")}, ErrValidation},
		{"starts occupied", TableInput{Number: intPtr(7), Status: strPtr(models.TableOccupied)}, ErrValidation},
		{"unknown status", TableInput{Number: intPtr(7), Status: strPtr("broken")}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tables.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.events.names())
}

func TestUpdateTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updated, err := f.tables.Update(ctx, 5, TableInput{
		Name:   strPtr("Carambola"),
		Status: strPtr(models.TableAvailable),
		Color:  strPtr("#00ff00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Carambola", updated.Name)
	assert.Equal(t, models.TableAvailable, updated.Status)
	assert.Equal(t, "18000", updated.HourlyRate.String(), "untouched fields keep their value")

	_, err = f.tables.Update(ctx, 5, TableInput{Number: intPtr(1)})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.tables.Update(ctx, 5, TableInput{Status: strPtr(models.TableOccupied)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.tables.Update(ctx, 42, TableInput{Name: strPtr("ghost")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOccupiedTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.engine.Start(ctx, StartInput{TableID: 1})
	require.NoError(t, err)
	f.events.reset()

	for _, status := range []string{models.TableMaintenance, models.TableReserved, models.TableAvailable} {
		_, err := f.tables.Update(ctx, 1, TableInput{Status: strPtr(status)})
		assert.ErrorIs(t, err, ErrConflict, "status %s", status)
	}

	updated, err := f.tables.Update(ctx, 1, TableInput{HourlyRate: decPtr(18000), Name: strPtr("Mesa VIP")})
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, updated.Status)

	events := f.events.all()
	require.Len(t, events, 1)
	payload := events[0].Data.(hub.TablePayload)
	require.NotNil(t, payload.Session)
	assert.Equal(t, session.ID, payload.Session.ID)

	f.assertOccupancy(t)
}

func TestDeleteTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.engine.Start(ctx, StartInput{TableID: 2})
	require.NoError(t, err)

	assert.ErrorIs(t, f.tables.Delete(ctx, 2), ErrConflict)

	_, err = f.engine.Finish(ctx, session.ID)
	require.NoError(t, err)
	f.events.reset()

	require.NoError(t, f.tables.Delete(ctx, 2))
	assert.Equal(t, []string{hub.EventTableDeleted}, f.events.names())

	_, err = f.tables.Get(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := f.sessions.Get(ctx, session.ID)
	require.NoError(t, err, "finished sessions outlive their table")
	assert.Equal(t, 2, history.TableNumber)

	assert.ErrorIs(t, f.tables.Delete(ctx, 2), ErrNotFound)
	assert.ErrorIs(t, f.tables.Delete(ctx, 0), ErrValidation)
}

func TestCountByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Start(ctx, StartInput{TableID: 1})
	require.NoError(t, err)

	counts, err := f.tables.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[models.TableAvailable])
	assert.Equal(t, int64(1), counts[models.TableOccupied])
	assert.Equal(t, int64(1), counts[models.TableMaintenance])
	assert.Equal(t, int64(0), counts[models.TableReserved])
}

func TestListWithSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.engine.Start(ctx, StartInput{TableID: 3})
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)

	views, err := f.tables.ListWithSessions(ctx)
	require.NoError(t, err)
	require.Len(t, views, 5)

	for _, v := range views {
		if v.ID != 3 {
			assert.Nil(t, v.Session, "table %d", v.Number)
			assert.Nil(t, v.Cost)
			continue
		}
		require.NotNil(t, v.Session)
		assert.Equal(t, session.ID, v.Session.ID)
		assert.Equal(t, 30, v.Minutes)
		assert.Equal(t, "7500", v.Cost.String())
	}

	single, err := f.tables.View(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 30, single.Minutes)
}
