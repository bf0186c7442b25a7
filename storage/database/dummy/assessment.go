package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/assessment"
)

type assessmentRepository struct {
	db *DB
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(db *DB) assessment.Repository {
	return &assessmentRepository{db: db}
}

func (repo *assessmentRepository) CreateAssessment(_ context.Context, a assessment.Assessment, _ ...core.DBExecutor) (assessment.Assessment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	repo.db.assessments[a.ID] = &a
	return a, nil
}

func (repo *assessmentRepository) QueryAssessments(_ context.Context, filter *assessment.QueryFilter, _ ...core.DBExecutor) ([]assessment.Assessment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	as := make([]assessment.Assessment, 0)
	for _, a := range repo.db.assessments {
		if filter != nil {
			switch {
			case filter.UnitID != "" && a.UnitID != filter.UnitID,
				filter.ClassID != "" && a.ClassID != filter.ClassID,
				filter.Term != "" && a.Term != filter.Term,
				filter.Kind != "" && a.Kind != filter.Kind,
				filter.Published != nil && a.Published != *filter.Published,
				filter.UnitIDs != nil && !contains(filter.UnitIDs, a.UnitID):
				continue
			}
		}
		as = append(as, *a)
	}
	orderBy(as, nil, nil, func(i, j int) bool {
		if c := compareTimes(as[i].Date, as[j].Date); c != 0 {
			return c < 0
		}
		if as[i].Title != as[j].Title {
			return as[i].Title < as[j].Title
		}
		return as[i].ID < as[j].ID
	})
	return as, nil
}

func (repo *assessmentRepository) GetAssessment(_ context.Context, id string, _ ...core.DBExecutor) (assessment.Assessment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.assessments[id]; ok {
		return *a, nil
	}
	return assessment.Assessment{}, assessment.ErrNotFound
}

func (repo *assessmentRepository) UpdateAssessment(_ context.Context, a assessment.Assessment, _ ...core.DBExecutor) (assessment.Assessment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assessments[a.ID]; !ok {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	repo.db.assessments[a.ID] = &a
	return a, nil
}

// DeleteAssessment removes the assessment along with its marks.
func (repo *assessmentRepository) DeleteAssessment(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assessments[id]; !ok {
		return assessment.ErrNotFound
	}
	for _, ev := range repo.db.evidence {
		if ev.AssessmentID == id {
			return core.ErrReferenced
		}
	}
	for k := range repo.db.marks {
		if k.assessmentID == id {
			delete(repo.db.marks, k)
		}
	}
	delete(repo.db.assessments, id)
	return nil
}

func copyMark(m assessment.Mark) assessment.Mark {
	if m.Score != nil {
		score := *m.Score
		m.Score = &score
	}
	return m
}

func (repo *assessmentRepository) UpsertMarks(_ context.Context, marks []assessment.Mark, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, m := range marks {
		if _, ok := repo.db.assessments[m.AssessmentID]; !ok {
			return core.ErrReferenced
		}
	}
	for _, m := range marks {
		m = copyMark(m)
		repo.db.marks[markKey{m.AssessmentID, m.StudentID}] = &m
	}
	return nil
}

func (repo *assessmentRepository) QueryMarks(_ context.Context, filter assessment.MarkFilter, _ ...core.DBExecutor) ([]assessment.Mark, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	marks := make([]assessment.Mark, 0)
	for k, m := range repo.db.marks {
		if filter.AssessmentIDs != nil && !contains(filter.AssessmentIDs, k.assessmentID) {
			continue
		}
		if filter.StudentID != "" && k.studentID != filter.StudentID {
			continue
		}
		marks = append(marks, copyMark(*m))
	}
	orderBy(marks, nil, nil, func(i, j int) bool {
		if marks[i].AssessmentID != marks[j].AssessmentID {
			return marks[i].AssessmentID < marks[j].AssessmentID
		}
		return marks[i].StudentID < marks[j].StudentID
	})
	return marks, nil
}

func copyEvidence(ev assessment.Evidence) assessment.Evidence {
	if ev.VerifiedAt != nil {
		at := *ev.VerifiedAt
		ev.VerifiedAt = &at
	}
	return ev
}

func (repo *assessmentRepository) CreateEvidence(_ context.Context, ev assessment.Evidence, _ ...core.DBExecutor) (assessment.Evidence, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev = copyEvidence(ev)
	repo.db.evidence[ev.ID] = &ev
	return copyEvidence(ev), nil
}

func (repo *assessmentRepository) QueryEvidence(_ context.Context, filter *assessment.EvidenceFilter, _ ...core.DBExecutor) ([]assessment.Evidence, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	evs := make([]assessment.Evidence, 0)
	for _, ev := range repo.db.evidence {
		if filter != nil {
			switch {
			case filter.StudentID != "" && ev.StudentID != filter.StudentID,
				filter.UnitID != "" && ev.UnitID != filter.UnitID,
				filter.AssessmentID != "" && ev.AssessmentID != filter.AssessmentID,
				filter.Status != "" && ev.Status != filter.Status,
				filter.UnitIDs != nil && !contains(filter.UnitIDs, ev.UnitID):
				continue
			}
		}
		evs = append(evs, copyEvidence(*ev))
	}
	// newest first
	orderBy(evs, nil, nil, func(i, j int) bool {
		if c := compareTimes(evs[i].SubmittedAt, evs[j].SubmittedAt); c != 0 {
			return c > 0
		}
		return evs[i].ID < evs[j].ID
	})
	return evs, nil
}

func (repo *assessmentRepository) GetEvidence(_ context.Context, id string, _ ...core.DBExecutor) (assessment.Evidence, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ev, ok := repo.db.evidence[id]; ok {
		return copyEvidence(*ev), nil
	}
	return assessment.Evidence{}, assessment.ErrEvidenceNotFound
}

func (repo *assessmentRepository) UpdateEvidence(_ context.Context, ev assessment.Evidence, _ ...core.DBExecutor) (assessment.Evidence, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.evidence[ev.ID]; !ok {
		return assessment.Evidence{}, assessment.ErrEvidenceNotFound
	}
	ev = copyEvidence(ev)
	repo.db.evidence[ev.ID] = &ev
	return copyEvidence(ev), nil
}
