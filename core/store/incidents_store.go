package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	IncidentStatusOngoing  = "en_cours"
	IncidentStatusFinished = "termine"
)

type Operation struct {
	Name      string
	Checked   bool
	Comment   string
	Operator  *string
	UpdatedAt *time.Time
}

type Incident struct {
	ID              int64
	StartedAt       time.Time
	EndedAt         *time.Time
	Counter         int
	LastIncrementAt *time.Time
	Active          bool
	Status          string
	Temperature     *float64
	Humidity        *float64
	Acknowledged    bool
	AckOperator     *string
	AckAt           *time.Time
	Ops             [3]Operation
}

type ArchivedIncident struct {
	ID           int64
	IncidentID   int64
	StartedAt    time.Time
	EndedAt      time.Time
	Counter      int
	Status       string
	Temperature  *float64
	Humidity     *float64
	Acknowledged bool
	AckOperator  *string
	AckAt        *time.Time
	Ops          [3]Operation
}

type IncidentComment struct {
	ID         int64
	IncidentID int64
	Author     string
	Content    string
	CreatedAt  time.Time
}

// OperationUpdate carries a partial mutation of one corrective operation.
// Nil fields are left untouched.
type OperationUpdate struct {
	Checked  *bool
	Comment  *string
	Operator string
	At       time.Time
}

type IncidentsStore interface {
	Active(ctx context.Context) (*Incident, error)
	Get(ctx context.Context, id int64) (*Incident, error)
	Create(ctx context.Context, inc *Incident) (int64, error)
	// UpdateCounter persists a counter tick together with the readings that
	// caused it. The incident must still be active.
	UpdateCounter(ctx context.Context, id int64, counter int, at time.Time, temperature, humidity float64) error
	UpdateOperation(ctx context.Context, id int64, op int, upd OperationUpdate) error
	SetAcknowledgement(ctx context.Context, id int64, acknowledged bool, operator string, at time.Time) error
	AddComment(ctx context.Context, c *IncidentComment) (int64, error)
	ListComments(ctx context.Context, incidentID int64) ([]IncidentComment, error)
	// CloseAndArchive deactivates the incident and copies its final state into
	// the archive in one transaction.
	CloseAndArchive(ctx context.Context, id int64, endedAt time.Time) (*ArchivedIncident, error)
	ListArchived(ctx context.Context, limit int) ([]ArchivedIncident, error)
	GetArchived(ctx context.Context, id int64) (*ArchivedIncident, error)
	DeleteArchivedBefore(ctx context.Context, before time.Time) (int64, error)
}

type incidentsStore struct {
	db *DB
}

func NewIncidentsStore(db *DB) IncidentsStore {
	return &incidentsStore{db: db}
}

const incidentColumns = `id, started_at, ended_at, counter, last_increment_at, active, status, temperature, humidity,
	acknowledged, ack_operator, ack_at,
	op1_name, op1_checked, op1_comment, op1_operator, op1_updated_at,
	op2_name, op2_checked, op2_comment, op2_operator, op2_updated_at,
	op3_name, op3_checked, op3_comment, op3_operator, op3_updated_at`

func (s *incidentsStore) Active(ctx context.Context) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+incidentColumns+` FROM incidents WHERE active=1 ORDER BY started_at DESC LIMIT 1`)
	return scanIncident(row)
}

func (s *incidentsStore) Get(ctx context.Context, id int64) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+incidentColumns+` FROM incidents WHERE id=?`, id)
	return scanIncident(row)
}

func (s *incidentsStore) Create(ctx context.Context, inc *Incident) (int64, error) {
	if inc.StartedAt.IsZero() {
		inc.StartedAt = time.Now().UTC()
	}
	if inc.Status == "" {
		inc.Status = IncidentStatusOngoing
	}
	inc.Active = true
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents(started_at, counter, last_increment_at, active, status, temperature, humidity)
		VALUES(?,?,?,1,?,?,?)`,
		inc.StartedAt, inc.Counter, inc.LastIncrementAt, inc.Status, inc.Temperature, inc.Humidity)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	inc.ID = id
	return id, nil
}

func (s *incidentsStore) UpdateCounter(ctx context.Context, id int64, counter int, at time.Time, temperature, humidity float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET counter=?, last_increment_at=?, temperature=?, humidity=?
		WHERE id=? AND active=1`,
		counter, at, temperature, humidity, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *incidentsStore) UpdateOperation(ctx context.Context, id int64, op int, upd OperationUpdate) error {
	if op < 1 || op > 3 {
		return fmt.Errorf("operation number out of range: %d", op)
	}
	prefix := fmt.Sprintf("op%d", op)
	set := ""
	args := []any{}
	if upd.Checked != nil {
		set += prefix + "_checked=?, "
		args = append(args, boolToInt(*upd.Checked))
		if *upd.Checked {
			set += prefix + "_operator=?, " + prefix + "_updated_at=?, "
			args = append(args, upd.Operator, upd.At)
		}
	}
	if upd.Comment != nil {
		set += prefix + "_comment=?, "
		args = append(args, *upd.Comment)
	}
	if set == "" {
		return nil
	}
	set = set[:len(set)-2]
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE incidents SET `+set+` WHERE id=? AND active=1`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *incidentsStore) SetAcknowledgement(ctx context.Context, id int64, acknowledged bool, operator string, at time.Time) error {
	var res sql.Result
	var err error
	if acknowledged {
		res, err = s.db.ExecContext(ctx, `
			UPDATE incidents SET acknowledged=1, ack_operator=?, ack_at=? WHERE id=? AND active=1`,
			operator, at, id)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE incidents SET acknowledged=0 WHERE id=? AND active=1`, id)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *incidentsStore) AddComment(ctx context.Context, c *IncidentComment) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO incident_comments(incident_id, author, content, created_at) VALUES(?,?,?,?)`,
		c.IncidentID, c.Author, c.Content, c.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	c.ID = id
	return id, nil
}

func (s *incidentsStore) ListComments(ctx context.Context, incidentID int64) ([]IncidentComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, author, content, created_at
		FROM incident_comments WHERE incident_id=? ORDER BY created_at ASC`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []IncidentComment
	for rows.Next() {
		var c IncidentComment
		if err := rows.Scan(&c.ID, &c.IncidentID, &c.Author, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *incidentsStore) CloseAndArchive(ctx context.Context, id int64, endedAt time.Time) (*ArchivedIncident, error) {
	inc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc == nil || !inc.Active {
		return nil, ErrConflict
	}
	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, s.db.rebind(`
		UPDATE incidents SET active=0, status=?, ended_at=?, last_increment_at=NULL
		WHERE id=? AND active=1`),
		IncidentStatusFinished, endedAt, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrConflict
	}
	archRes, err := tx.ExecContext(ctx, s.db.rebind(`
		INSERT INTO incident_archive(
			incident_id, started_at, ended_at, counter, status, temperature, humidity,
			acknowledged, ack_operator, ack_at,
			op1_name, op1_checked, op1_comment, op1_operator, op1_updated_at,
			op2_name, op2_checked, op2_comment, op2_operator, op2_updated_at,
			op3_name, op3_checked, op3_comment, op3_operator, op3_updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		inc.ID, inc.StartedAt, endedAt, inc.Counter, IncidentStatusFinished, inc.Temperature, inc.Humidity,
		boolToInt(inc.Acknowledged), inc.AckOperator, inc.AckAt,
		inc.Ops[0].Name, boolToInt(inc.Ops[0].Checked), inc.Ops[0].Comment, inc.Ops[0].Operator, inc.Ops[0].UpdatedAt,
		inc.Ops[1].Name, boolToInt(inc.Ops[1].Checked), inc.Ops[1].Comment, inc.Ops[1].Operator, inc.Ops[1].UpdatedAt,
		inc.Ops[2].Name, boolToInt(inc.Ops[2].Checked), inc.Ops[2].Comment, inc.Ops[2].Operator, inc.Ops[2].UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	archID, _ := archRes.LastInsertId()
	return s.GetArchived(ctx, archID)
}

const archiveColumns = `id, incident_id, started_at, ended_at, counter, status, temperature, humidity,
	acknowledged, ack_operator, ack_at,
	op1_name, op1_checked, op1_comment, op1_operator, op1_updated_at,
	op2_name, op2_checked, op2_comment, op2_operator, op2_updated_at,
	op3_name, op3_checked, op3_comment, op3_operator, op3_updated_at`

func (s *incidentsStore) ListArchived(ctx context.Context, limit int) ([]ArchivedIncident, error) {
	query := `SELECT ` + archiveColumns + ` FROM incident_archive ORDER BY started_at DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ArchivedIncident
	for rows.Next() {
		a, err := scanArchived(rows)
		if err != nil {
			return nil, err
		}
		if a != nil {
			res = append(res, *a)
		}
	}
	return res, rows.Err()
}

func (s *incidentsStore) GetArchived(ctx context.Context, id int64) (*ArchivedIncident, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+archiveColumns+` FROM incident_archive WHERE id=?`, id)
	return scanArchived(row)
}

func (s *incidentsStore) DeleteArchivedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM incident_archive WHERE ended_at<?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanIncident(row rowScanner) (*Incident, error) {
	var inc Incident
	var active, ack int
	var checked [3]int
	err := row.Scan(
		&inc.ID, &inc.StartedAt, &inc.EndedAt, &inc.Counter, &inc.LastIncrementAt, &active, &inc.Status,
		&inc.Temperature, &inc.Humidity,
		&ack, &inc.AckOperator, &inc.AckAt,
		&inc.Ops[0].Name, &checked[0], &inc.Ops[0].Comment, &inc.Ops[0].Operator, &inc.Ops[0].UpdatedAt,
		&inc.Ops[1].Name, &checked[1], &inc.Ops[1].Comment, &inc.Ops[1].Operator, &inc.Ops[1].UpdatedAt,
		&inc.Ops[2].Name, &checked[2], &inc.Ops[2].Comment, &inc.Ops[2].Operator, &inc.Ops[2].UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	inc.Active = active != 0
	inc.Acknowledged = ack != 0
	for i := range inc.Ops {
		inc.Ops[i].Checked = checked[i] != 0
	}
	return &inc, nil
}

func scanArchived(row rowScanner) (*ArchivedIncident, error) {
	var a ArchivedIncident
	var ack int
	var checked [3]int
	err := row.Scan(
		&a.ID, &a.IncidentID, &a.StartedAt, &a.EndedAt, &a.Counter, &a.Status,
		&a.Temperature, &a.Humidity,
		&ack, &a.AckOperator, &a.AckAt,
		&a.Ops[0].Name, &checked[0], &a.Ops[0].Comment, &a.Ops[0].Operator, &a.Ops[0].UpdatedAt,
		&a.Ops[1].Name, &checked[1], &a.Ops[1].Comment, &a.Ops[1].Operator, &a.Ops[1].UpdatedAt,
		&a.Ops[2].Name, &checked[2], &a.Ops[2].Comment, &a.Ops[2].Operator, &a.Ops[2].UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Acknowledged = ack != 0
	for i := range a.Ops {
		a.Ops[i].Checked = checked[i] != 0
	}
	return &a, nil
}
