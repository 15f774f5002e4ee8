package upload

import (
	"context"
	"errors"

	"analytics-uploader/internal/config"
	"analytics-uploader/internal/database"
	"analytics-uploader/internal/events"
)

type storedRow struct {
	id int64
	ev events.AnalyticsEvent
}

// memoryDriver is a transactional in-memory destination. Identifiers start at
// firstID like an identity column.
type memoryDriver struct {
	firstID int64
	rows    []storedRow
	nextID  int64

	maxIDErr   error
	beginErr   error
	commitErr  error
	failInsert int // 1-based insert call that fails across the driver's life; 0 disables
	inserts    int
	txCount    int
}

func newMemoryDriver(firstID int64) *memoryDriver {
	return &memoryDriver{firstID: firstID, nextID: firstID}
}

func (m *memoryDriver) Connect(context.Context, config.Credentials) error { return nil }
func (m *memoryDriver) Close(context.Context) error                       { return nil }

func (m *memoryDriver) MaxID(context.Context) (int64, bool, error) {
	if m.maxIDErr != nil {
		return 0, false, m.maxIDErr
	}
	if len(m.rows) == 0 {
		return 0, false, nil
	}
	return m.rows[len(m.rows)-1].id, true, nil
}

func (m *memoryDriver) ExecuteTx(ctx context.Context, txFunc func(database.Tx) error) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	m.txCount++

	tx := &memoryTx{driver: m, nextID: m.nextID}
	if err := txFunc(tx); err != nil {
		return err
	}
	if m.commitErr != nil {
		return m.commitErr
	}
	m.rows = append(m.rows, tx.staged...)
	m.nextID = tx.nextID
	return nil
}

func (m *memoryDriver) events() []events.AnalyticsEvent {
	out := make([]events.AnalyticsEvent, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.ev
	}
	return out
}

var errInsertRejected = errors.New("value too long for type character varying(255)")

type memoryTx struct {
	driver *memoryDriver
	staged []storedRow
	nextID int64
}

func (t *memoryTx) Insert(_ context.Context, ev events.AnalyticsEvent) error {
	t.driver.inserts++
	if t.driver.failInsert > 0 && t.driver.inserts == t.driver.failInsert {
		return errInsertRejected
	}
	t.staged = append(t.staged, storedRow{id: t.nextID, ev: ev})
	t.nextID++
	return nil
}
