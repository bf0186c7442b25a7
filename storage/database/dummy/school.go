package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CheckClassCodeUniqueness(_ context.Context, code string, excludedIDs []string, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, c := range repo.db.classes {
		if strings.EqualFold(c.Code, code) && !contains(excludedIDs, c.ID) {
			return school.ErrClassCodeExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateClass(_ context.Context, class school.Class, _ ...core.DBExecutor) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if class.ID == "" {
		class.ID = uuid.New().String()
	}
	repo.db.classes[class.ID] = &class
	return class, nil
}

func (repo *schoolRepository) QueryClasses(_ context.Context, filter *school.ClassFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]school.Class, 0)
	for _, c := range repo.db.classes {
		if filter != nil {
			if filter.Search != "" && !containsFold(c.Name, filter.Search) && !containsFold(c.Code, filter.Search) {
				continue
			}
			if filter.Department != "" && !strings.EqualFold(c.Department, filter.Department) {
				continue
			}
			if filter.Year != 0 && c.Year != filter.Year {
				continue
			}
			if filter.TrainerID != "" && c.TrainerID != filter.TrainerID {
				continue
			}
		}
		classes = append(classes, *c)
	}

	orderBy(classes, ordering, func(field string, i, j int) int {
		a, b := classes[i], classes[j]
		switch field {
		case "name":
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case "code":
			return strings.Compare(a.Code, b.Code)
		case "department":
			return strings.Compare(a.Department, b.Department)
		case "year":
			return compareInts(a.Year, b.Year)
		case "created_at":
			return compareTimes(a.CreatedAt, b.CreatedAt)
		}
		return 0
	}, func(i, j int) bool {
		return classes[i].Code < classes[j].Code
	})
	return classes, nil
}

func (repo *schoolRepository) GetClass(_ context.Context, id string, _ ...core.DBExecutor) (school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.classes[id]; ok {
		return *c, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *schoolRepository) UpdateClass(_ context.Context, class school.Class, _ ...core.DBExecutor) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[class.ID]; !ok {
		return school.Class{}, school.ErrClassNotFound
	}
	repo.db.classes[class.ID] = &class
	return class, nil
}

func (repo *schoolRepository) DeleteClass(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return school.ErrClassNotFound
	}
	if repo.db.classReferenced(id) {
		return core.ErrReferenced
	}
	delete(repo.db.classes, id)
	return nil
}

func (db *DB) classReferenced(id string) bool {
	for _, u := range db.units {
		if u.ClassID == id {
			return true
		}
	}
	for _, e := range db.enrolments {
		if e.ClassID == id {
			return true
		}
	}
	for _, fs := range db.feeStructures {
		if fs.ClassID == id {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) CreateUnit(_ context.Context, unit school.Unit, _ ...core.DBExecutor) (school.Unit, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if unit.ID == "" {
		unit.ID = uuid.New().String()
	}
	repo.db.units[unit.ID] = &unit
	return unit, nil
}

func (repo *schoolRepository) QueryUnits(_ context.Context, filter *school.UnitFilter, _ ...core.DBExecutor) ([]school.Unit, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	units := make([]school.Unit, 0)
	for _, u := range repo.db.units {
		if filter != nil {
			if filter.ClassID != "" && u.ClassID != filter.ClassID {
				continue
			}
			if filter.TrainerID != "" && u.TrainerID != filter.TrainerID {
				continue
			}
			if filter.IDs != nil && !contains(filter.IDs, u.ID) {
				continue
			}
		}
		units = append(units, *u)
	}
	orderBy(units, nil, nil, func(i, j int) bool {
		if units[i].Code != units[j].Code {
			return units[i].Code < units[j].Code
		}
		return units[i].ID < units[j].ID
	})
	return units, nil
}

func (repo *schoolRepository) GetUnit(_ context.Context, id string, _ ...core.DBExecutor) (school.Unit, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if u, ok := repo.db.units[id]; ok {
		return *u, nil
	}
	return school.Unit{}, school.ErrUnitNotFound
}

func (repo *schoolRepository) UpdateUnit(_ context.Context, unit school.Unit, _ ...core.DBExecutor) (school.Unit, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.units[unit.ID]; !ok {
		return school.Unit{}, school.ErrUnitNotFound
	}
	repo.db.units[unit.ID] = &unit
	return unit, nil
}

func (repo *schoolRepository) DeleteUnit(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.units[id]; !ok {
		return school.ErrUnitNotFound
	}
	if repo.db.unitReferenced(id) {
		return core.ErrReferenced
	}
	delete(repo.db.units, id)
	return nil
}

func (db *DB) unitReferenced(id string) bool {
	for _, s := range db.sessions {
		if s.UnitID == id {
			return true
		}
	}
	for _, lp := range db.lessonPlans {
		if lp.UnitID == id {
			return true
		}
	}
	for _, a := range db.assessments {
		if a.UnitID == id {
			return true
		}
	}
	for _, ev := range db.evidence {
		if ev.UnitID == id {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) AdmissionNoExists(_ context.Context, admissionNo string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, e := range repo.db.enrolments {
		if strings.EqualFold(e.AdmissionNo, admissionNo) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *schoolRepository) CreateEnrolment(_ context.Context, enrolment school.Enrolment, _ ...core.DBExecutor) (school.Enrolment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if enrolment.ID == "" {
		enrolment.ID = uuid.New().String()
	}
	repo.db.enrolments[enrolment.ID] = &enrolment
	return enrolment, nil
}

func (repo *schoolRepository) QueryEnrolments(_ context.Context, filter school.EnrolmentFilter, _ ...core.DBExecutor) ([]school.Enrolment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrolments := make([]school.Enrolment, 0)
	for _, e := range repo.db.enrolments {
		if filter.ClassID != "" && e.ClassID != filter.ClassID {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		enrolments = append(enrolments, *e)
	}
	orderBy(enrolments, nil, nil, func(i, j int) bool {
		if c := compareTimes(enrolments[i].EnrolledAt, enrolments[j].EnrolledAt); c != 0 {
			return c < 0
		}
		return enrolments[i].ID < enrolments[j].ID
	})
	return enrolments, nil
}

func (repo *schoolRepository) GetEnrolment(_ context.Context, id string, _ ...core.DBExecutor) (school.Enrolment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.enrolments[id]; ok {
		return *e, nil
	}
	return school.Enrolment{}, school.ErrEnrolmentNotFound
}

func (repo *schoolRepository) UpdateEnrolment(_ context.Context, enrolment school.Enrolment, _ ...core.DBExecutor) (school.Enrolment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.enrolments[enrolment.ID]; !ok {
		return school.Enrolment{}, school.ErrEnrolmentNotFound
	}
	repo.db.enrolments[enrolment.ID] = &enrolment
	return enrolment, nil
}
