package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/timetable"
)

var dayOrder = func() map[string]int {
	idx := make(map[string]int, len(timetable.Days))
	for i, d := range timetable.Days {
		idx[d] = i
	}
	return idx
}()

type timetableRepository struct {
	db *DB
}

var _ timetable.Repository = (*timetableRepository)(nil) // interface compliance check

func NewTimetableRepository(db *DB) timetable.Repository {
	return &timetableRepository{db: db}
}

func (repo *timetableRepository) CreateSession(_ context.Context, sess timetable.Session, _ ...core.DBExecutor) (timetable.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	repo.db.sessions[sess.ID] = &sess
	return sess, nil
}

func (repo *timetableRepository) QuerySessions(_ context.Context, filter *timetable.QueryFilter, _ ...core.DBExecutor) ([]timetable.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := make([]timetable.Session, 0)
	for _, s := range repo.db.sessions {
		if filter != nil && !matchSession(*s, filter) {
			continue
		}
		sessions = append(sessions, *s)
	}

	// by day of the week, then start time
	orderBy(sessions, nil, nil, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.Day != b.Day {
			return dayOrder[a.Day] < dayOrder[b.Day]
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ID < b.ID
	})
	return sessions, nil
}

func matchSession(s timetable.Session, filter *timetable.QueryFilter) bool {
	switch {
	case filter.Term != "" && s.Term != filter.Term,
		filter.ClassID != "" && s.ClassID != filter.ClassID,
		filter.UnitID != "" && s.UnitID != filter.UnitID,
		filter.TrainerID != "" && s.TrainerID != filter.TrainerID,
		filter.Room != "" && !strings.EqualFold(s.Room, filter.Room),
		filter.Day != "" && s.Day != filter.Day,
		filter.ClassIDs != nil && !contains(filter.ClassIDs, s.ClassID):
		return false
	}
	return true
}

func (repo *timetableRepository) GetSession(_ context.Context, id string, _ ...core.DBExecutor) (timetable.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.sessions[id]; ok {
		return *s, nil
	}
	return timetable.Session{}, timetable.ErrNotFound
}

func (repo *timetableRepository) UpdateSession(_ context.Context, sess timetable.Session, _ ...core.DBExecutor) (timetable.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sessions[sess.ID]; !ok {
		return timetable.Session{}, timetable.ErrNotFound
	}
	repo.db.sessions[sess.ID] = &sess
	return sess, nil
}

func (repo *timetableRepository) DeleteSession(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sessions[id]; !ok {
		return timetable.ErrNotFound
	}
	delete(repo.db.sessions, id)
	return nil
}
