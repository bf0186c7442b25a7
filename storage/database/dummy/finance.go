package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/finance"
)

type financeRepository struct {
	db *DB
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(db *DB) finance.Repository {
	return &financeRepository{db: db}
}

func copyFeeStructure(fs finance.FeeStructure) finance.FeeStructure {
	fs.Items = append([]finance.FeeItem(nil), fs.Items...)
	return fs
}

func (repo *financeRepository) CreateFeeStructure(_ context.Context, fs finance.FeeStructure, _ ...core.DBExecutor) (finance.FeeStructure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[fs.ClassID]; !ok {
		return finance.FeeStructure{}, core.ErrReferenced
	}
	if fs.ID == "" {
		fs.ID = uuid.New().String()
	}
	fs = copyFeeStructure(fs)
	repo.db.feeStructures[fs.ID] = &fs
	return copyFeeStructure(fs), nil
}

func (repo *financeRepository) GetFeeStructure(_ context.Context, id string, _ ...core.DBExecutor) (finance.FeeStructure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if fs, ok := repo.db.feeStructures[id]; ok {
		return copyFeeStructure(*fs), nil
	}
	return finance.FeeStructure{}, finance.ErrFeeStructureNotFound
}

func (repo *financeRepository) QueryFeeStructures(_ context.Context, classID, term string, _ ...core.DBExecutor) ([]finance.FeeStructure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	res := make([]finance.FeeStructure, 0)
	for _, fs := range repo.db.feeStructures {
		if classID != "" && fs.ClassID != classID {
			continue
		}
		if term != "" && fs.Term != term {
			continue
		}
		res = append(res, copyFeeStructure(*fs))
	}
	orderBy(res, nil, nil, func(i, j int) bool {
		if c := compareTimes(res[i].CreatedAt, res[j].CreatedAt); c != 0 {
			return c < 0
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (repo *financeRepository) CreateCharges(_ context.Context, charges []finance.Charge, _ ...core.DBExecutor) ([]finance.Charge, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, c := range charges {
		if _, ok := repo.db.users[c.StudentID]; !ok {
			return nil, core.ErrReferenced
		}
	}
	created := make([]finance.Charge, 0, len(charges))
	for _, c := range charges {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		repo.db.charges[c.ID] = &c
		created = append(created, c)
	}
	return created, nil
}

func (repo *financeRepository) QueryCharges(_ context.Context, filter finance.ChargeFilter, _ ...core.DBExecutor) ([]finance.Charge, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	res := make([]finance.Charge, 0)
	for _, c := range repo.db.charges {
		if filter.StudentIDs != nil && !contains(filter.StudentIDs, c.StudentID) {
			continue
		}
		if filter.FeeStructureID != "" && c.FeeStructureID != filter.FeeStructureID {
			continue
		}
		res = append(res, *c)
	}
	orderBy(res, nil, nil, func(i, j int) bool {
		if c := compareTimes(res[i].CreatedAt, res[j].CreatedAt); c != 0 {
			return c < 0
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (repo *financeRepository) CreatePayment(_ context.Context, p finance.Payment, _ ...core.DBExecutor) (finance.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[p.StudentID]; !ok {
		return finance.Payment{}, core.ErrReferenced
	}
	for _, other := range repo.db.payments {
		if other.Reference == p.Reference {
			return finance.Payment{}, finance.ErrDuplicateReference
		}
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	repo.db.payments[p.ID] = &p
	return p, nil
}

func (repo *financeRepository) QueryPayments(_ context.Context, filter finance.PaymentFilter, _ ...core.DBExecutor) ([]finance.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	res := make([]finance.Payment, 0)
	for _, p := range repo.db.payments {
		if filter.StudentIDs != nil && !contains(filter.StudentIDs, p.StudentID) {
			continue
		}
		if filter.Reference != "" && p.Reference != filter.Reference {
			continue
		}
		res = append(res, *p)
	}
	orderBy(res, nil, nil, func(i, j int) bool {
		if c := compareTimes(res[i].PaidAt, res[j].PaidAt); c != 0 {
			return c < 0
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}
