package boiledrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/timetable"
)

const sessionColumns = `id, term, class_id, unit_id, trainer_id, room, day, start_time, end_time, created_at, updated_at`

// sessions sort by weekday, not alphabetically
var dayOrdering = func() string {
	days := make([]string, 0, len(timetable.Days))
	for _, d := range timetable.Days {
		days = append(days, "'"+d+"'")
	}
	return "array_position(ARRAY[" + strings.Join(days, ", ") + "]::TEXT[], day::TEXT)"
}()

type sessionRow struct {
	ID        string    `boil:"id"`
	Term      string    `boil:"term"`
	ClassID   string    `boil:"class_id"`
	UnitID    string    `boil:"unit_id"`
	TrainerID string    `boil:"trainer_id"`
	Room      string    `boil:"room"`
	Day       string    `boil:"day"`
	Start     string    `boil:"start_time"`
	End       string    `boil:"end_time"`
	CreatedAt time.Time `boil:"created_at"`
	UpdatedAt time.Time `boil:"updated_at"`
}

type timetableRepository struct {
	repository
}

var _ timetable.Repository = (*timetableRepository)(nil) // interface compliance check

func NewTimetableRepository(exec core.DBExecutor) timetable.Repository {
	return &timetableRepository{repository{exec: exec}}
}

func (repo timetableRepository) CreateSession(ctx context.Context, sess timetable.Session, exec ...core.DBExecutor) (timetable.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	_, err := repo.execute(ctx, exec,
		`INSERT INTO session (`+sessionColumns+`) VALUES (`+placeholders(11)+`)`,
		sess.ID, sess.Term, sess.ClassID, sess.UnitID, sess.TrainerID, sess.Room, sess.Day,
		sess.Start, sess.End, sess.CreatedAt.UTC(), sess.UpdatedAt.UTC())
	if err != nil {
		return timetable.Session{}, trapErr(err, nil, "inserting session")
	}
	return sess, nil
}

func (repo timetableRepository) QuerySessions(ctx context.Context, filter *timetable.QueryFilter, exec ...core.DBExecutor) ([]timetable.Session, error) {
	var w where
	if filter != nil {
		for _, id := range []string{filter.ClassID, filter.UnitID, filter.TrainerID} {
			if id != "" && !isUUID(id) {
				return []timetable.Session{}, nil
			}
		}
		if filter.Term != "" {
			w.add("term = ?", filter.Term)
		}
		if filter.ClassID != "" {
			w.add("class_id = ?", filter.ClassID)
		}
		if filter.UnitID != "" {
			w.add("unit_id = ?", filter.UnitID)
		}
		if filter.TrainerID != "" {
			w.add("trainer_id = ?", filter.TrainerID)
		}
		if filter.Room != "" {
			w.add("LOWER(room) = LOWER(?)", filter.Room)
		}
		if filter.Day != "" {
			w.add("day = ?", filter.Day)
		}
		if filter.ClassIDs != nil {
			ids := uuids(filter.ClassIDs)
			if len(ids) == 0 {
				return []timetable.Session{}, nil
			}
			w.add("class_id IN (?)", ids)
		}
	}

	var rows []sessionRow
	q := `SELECT ` + sessionColumns + ` FROM session` + w.String() + ` ORDER BY ` + dayOrdering + `, start_time, id`
	if err := repo.bind(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting sessions")
	}
	sessions := make([]timetable.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, timetable.Session(r))
	}
	return sessions, nil
}

func (repo timetableRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (timetable.Session, error) {
	if !isUUID(id) {
		return timetable.Session{}, timetable.ErrNotFound
	}
	var row sessionRow
	if err := repo.bind(ctx, exec, &row, `SELECT `+sessionColumns+` FROM session WHERE id = ?`, id); err != nil {
		return timetable.Session{}, trapErr(err, timetable.ErrNotFound, "selecting session")
	}
	return timetable.Session(row), nil
}

func (repo timetableRepository) UpdateSession(ctx context.Context, sess timetable.Session, exec ...core.DBExecutor) (timetable.Session, error) {
	res, err := repo.execute(ctx, exec,
		`UPDATE session SET trainer_id = ?, room = ?, day = ?, start_time = ?, end_time = ?, updated_at = ? WHERE id = ?`,
		sess.TrainerID, sess.Room, sess.Day, sess.Start, sess.End, sess.UpdatedAt.UTC(), sess.ID)
	if err != nil {
		return timetable.Session{}, trapErr(err, nil, "updating session")
	}
	if err := checkAffected(res, timetable.ErrNotFound); err != nil {
		return timetable.Session{}, err
	}
	return sess, nil
}

func (repo timetableRepository) DeleteSession(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return timetable.ErrNotFound
	}
	res, err := repo.execute(ctx, exec, `DELETE FROM session WHERE id = ?`, id)
	if err != nil {
		return trapErr(err, nil, "deleting session")
	}
	return checkAffected(res, timetable.ErrNotFound)
}
