package timetable

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/school"
	"github.com/teachhub/backend/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("session not found")
	ErrClash    = errors.New("session clashes with the timetable")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session, exec ...core.DBExecutor) (Session, error)
		QuerySessions(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Session, error)
		GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		UpdateSession(ctx context.Context, sess Session, exec ...core.DBExecutor) (Session, error)
		DeleteSession(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, ns NewSession) (Session, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Session, error)
		Get(ctx context.Context, id string) (Session, error)
		Update(ctx context.Context, sess Session, us UpdateSession) (Session, error)
		Delete(ctx context.Context, id string) error
		// Clashes audits the stored sessions of a term.
		Clashes(ctx context.Context, term string) ([]Clash, error)
		FreeSlots(ctx context.Context, query FreeSlotQuery) ([]Slot, error)
		// UserTimetable returns the sessions a trainer teaches or a student attends in a term.
		UserTimetable(ctx context.Context, usr user.User, term string) ([]Session, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		schoolSvc school.Service
	}
)

var _ Service = (*service)(nil) // interface compliance check

// NewService returns a timetable Service. db may be nil for in-memory repositories.
func NewService(db core.DB, repo Repository, schoolSvc school.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(schoolSvc, "schoolSvc"),
	).CheckAndPanic()

	return &service{db: db, repo: repo, schoolSvc: schoolSvc}
}

// checkClashes fails with a ValidationError naming the first session sess would clash with.
func (svc *service) checkClashes(ctx context.Context, sess Session, exec core.DBExecutor) error {
	others, err := svc.repo.QuerySessions(ctx, &QueryFilter{Term: sess.Term, Day: sess.Day}, exec)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	clashes := ClashesWith(sess, others)
	if len(clashes) == 0 {
		return nil
	}

	c := clashes[0]
	other := c.First
	if other.ID == sess.ID {
		other = c.Second
	}
	return core.NewValidationError(ErrClash, core.FieldError{
		Field: "start",
		Error: fmt.Sprintf("%s clash with session %s (%s), overlapping %s-%s", c.Kind, other.ID, other, c.Start, c.End),
	})
}

func (svc *service) Create(ctx context.Context, ns NewSession) (Session, error) {
	unit, err := svc.schoolSvc.GetUnit(ctx, ns.UnitID)
	if err != nil {
		if core.IsNotFound(err) {
			return Session{}, core.NewValidationError(err, core.FieldError{Field: "unit_id", Error: err.Error()})
		}
		return Session{}, errors.Wrap(err, "finding unit")
	}

	now := time.Now().UTC()
	sess := Session{
		Term:      ns.Term,
		ClassID:   unit.ClassID,
		UnitID:    unit.ID,
		TrainerID: unit.TrainerID,
		Room:      ns.Room,
		Day:       ns.Day,
		Start:     ns.Start,
		End:       ns.End,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ns.TrainerID != "" {
		sess.TrainerID = ns.TrainerID
	}

	var created Session
	err = core.RunInSerializableTx(ctx, svc.db, func(exec core.DBExecutor) error {
		if err := svc.checkClashes(ctx, sess, exec); err != nil {
			return err
		}
		var err error
		created, err = svc.repo.CreateSession(ctx, sess, exec)
		return err
	})
	if err != nil {
		return Session{}, err
	}
	return created, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Session, error) {
	return svc.repo.QuerySessions(ctx, filter)
}

func (svc *service) Get(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *service) Update(ctx context.Context, sess Session, us UpdateSession) (Session, error) {
	sess.TrainerID = us.TrainerID
	if us.Room != nil {
		sess.Room = *us.Room
	}
	sess.Day = us.Day
	sess.Start = us.Start
	sess.End = us.End
	sess.UpdatedAt = time.Now().UTC()

	var updated Session
	err := core.RunInSerializableTx(ctx, svc.db, func(exec core.DBExecutor) error {
		if err := svc.checkClashes(ctx, sess, exec); err != nil {
			return err
		}
		var err error
		updated, err = svc.repo.UpdateSession(ctx, sess, exec)
		return err
	})
	if err != nil {
		return Session{}, err
	}
	return updated, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteSession(ctx, id)
}

func (svc *service) Clashes(ctx context.Context, term string) ([]Clash, error) {
	sessions, err := svc.repo.QuerySessions(ctx, &QueryFilter{Term: term})
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	return DetectClashes(sessions), nil
}

func (svc *service) FreeSlots(ctx context.Context, query FreeSlotQuery) ([]Slot, error) {
	filter := &QueryFilter{Term: query.Term, Day: query.Day}
	switch query.Kind {
	case KindClass:
		filter.ClassID = query.ID
	case KindRoom:
		filter.Room = query.ID
	case KindTrainer:
		filter.TrainerID = query.ID
	}
	sessions, err := svc.repo.QuerySessions(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	return FreeSlots(sessions, query.Kind, query.ID, query.Day, query.Start, query.End, query.MinLength), nil
}

func (svc *service) UserTimetable(ctx context.Context, usr user.User, term string) ([]Session, error) {
	if usr.IsTrainer() {
		return svc.repo.QuerySessions(ctx, &QueryFilter{Term: term, TrainerID: usr.ID})
	}
	if !usr.IsStudent() {
		return []Session{}, nil
	}

	enrolments, err := svc.schoolSvc.StudentEnrolments(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolments")
	}
	if len(enrolments) == 0 {
		return []Session{}, nil
	}
	classIDs := make([]string, 0, len(enrolments))
	for _, e := range enrolments {
		classIDs = append(classIDs, e.ClassID)
	}
	return svc.repo.QuerySessions(ctx, &QueryFilter{Term: term, ClassIDs: classIDs})
}
