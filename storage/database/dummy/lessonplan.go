package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/lessonplan"
)

type lessonPlanRepository struct {
	db *DB
}

var _ lessonplan.Repository = (*lessonPlanRepository)(nil) // interface compliance check

func NewLessonPlanRepository(db *DB) lessonplan.Repository {
	return &lessonPlanRepository{db: db}
}

func (repo *lessonPlanRepository) CreateLessonPlan(_ context.Context, lp lessonplan.LessonPlan, _ ...core.DBExecutor) (lessonplan.LessonPlan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if lp.ID == "" {
		lp.ID = uuid.New().String()
	}
	repo.db.lessonPlans[lp.ID] = &lp
	return lp, nil
}

func (repo *lessonPlanRepository) QueryLessonPlans(_ context.Context, filter *lessonplan.QueryFilter, _ ...core.DBExecutor) ([]lessonplan.LessonPlan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	plans := make([]lessonplan.LessonPlan, 0)
	for _, lp := range repo.db.lessonPlans {
		if filter != nil {
			if filter.UnitID != "" && lp.UnitID != filter.UnitID {
				continue
			}
			if filter.TrainerID != "" && lp.TrainerID != filter.TrainerID {
				continue
			}
			if filter.Status != "" && lp.Status != filter.Status {
				continue
			}
			if filter.Week != 0 && lp.Week != filter.Week {
				continue
			}
		}
		plans = append(plans, *lp)
	}
	orderBy(plans, nil, nil, func(i, j int) bool {
		if plans[i].Week != plans[j].Week {
			return plans[i].Week < plans[j].Week
		}
		if c := compareTimes(plans[i].CreatedAt, plans[j].CreatedAt); c != 0 {
			return c < 0
		}
		return plans[i].ID < plans[j].ID
	})
	return plans, nil
}

func (repo *lessonPlanRepository) GetLessonPlan(_ context.Context, id string, _ ...core.DBExecutor) (lessonplan.LessonPlan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if lp, ok := repo.db.lessonPlans[id]; ok {
		return *lp, nil
	}
	return lessonplan.LessonPlan{}, lessonplan.ErrNotFound
}

func (repo *lessonPlanRepository) UpdateLessonPlan(_ context.Context, lp lessonplan.LessonPlan, _ ...core.DBExecutor) (lessonplan.LessonPlan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.lessonPlans[lp.ID]; !ok {
		return lessonplan.LessonPlan{}, lessonplan.ErrNotFound
	}
	repo.db.lessonPlans[lp.ID] = &lp
	return lp, nil
}

func (repo *lessonPlanRepository) DeleteLessonPlan(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.lessonPlans[id]; !ok {
		return lessonplan.ErrNotFound
	}
	delete(repo.db.lessonPlans, id)
	return nil
}
