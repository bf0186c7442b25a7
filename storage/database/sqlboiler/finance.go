package boiledrepos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/finance"
)

const (
	feeStructureColumns = `id, class_id, term, items, due_date, created_at`
	chargeColumns       = `id, student_id, term, description, amount, due_date, fee_structure_id, created_at`
	paymentColumns      = `id, student_id, amount, method, reference, paid_at, recorded_by, created_at`
)

type feeStructureRow struct {
	ID        string     `boil:"id"`
	ClassID   string     `boil:"class_id"`
	Term      string     `boil:"term"`
	Items     types.JSON `boil:"items"`
	DueDate   time.Time  `boil:"due_date"`
	CreatedAt time.Time  `boil:"created_at"`
}

func (r feeStructureRow) unboil() (finance.FeeStructure, error) {
	fs := finance.FeeStructure{
		ID:        r.ID,
		ClassID:   r.ClassID,
		Term:      r.Term,
		DueDate:   r.DueDate,
		CreatedAt: r.CreatedAt,
	}
	if err := r.Items.Unmarshal(&fs.Items); err != nil {
		return finance.FeeStructure{}, errors.Wrap(err, "decoding fee items")
	}
	return fs, nil
}

type chargeRow struct {
	ID             string      `boil:"id"`
	StudentID      string      `boil:"student_id"`
	Term           string      `boil:"term"`
	Description    string      `boil:"description"`
	Amount         int64       `boil:"amount"`
	DueDate        time.Time   `boil:"due_date"`
	FeeStructureID null.String `boil:"fee_structure_id"`
	CreatedAt      time.Time   `boil:"created_at"`
}

func (r chargeRow) unboil() finance.Charge {
	return finance.Charge{
		ID:             r.ID,
		StudentID:      r.StudentID,
		Term:           r.Term,
		Description:    r.Description,
		Amount:         r.Amount,
		DueDate:        r.DueDate,
		FeeStructureID: r.FeeStructureID.String,
		CreatedAt:      r.CreatedAt,
	}
}

type paymentRow struct {
	ID         string    `boil:"id"`
	StudentID  string    `boil:"student_id"`
	Amount     int64     `boil:"amount"`
	Method     string    `boil:"method"`
	Reference  string    `boil:"reference"`
	PaidAt     time.Time `boil:"paid_at"`
	RecordedBy string    `boil:"recorded_by"`
	CreatedAt  time.Time `boil:"created_at"`
}

type financeRepository struct {
	repository
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(exec core.DBExecutor) finance.Repository {
	return &financeRepository{repository{exec: exec}}
}

func (repo financeRepository) CreateFeeStructure(ctx context.Context, fs finance.FeeStructure, exec ...core.DBExecutor) (finance.FeeStructure, error) {
	if fs.ID == "" {
		fs.ID = uuid.New().String()
	}
	items := fs.Items
	if items == nil {
		items = []finance.FeeItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return finance.FeeStructure{}, errors.Wrap(err, "encoding fee items")
	}
	_, err = repo.execute(ctx, exec,
		`INSERT INTO fee_structure (`+feeStructureColumns+`) VALUES (`+placeholders(6)+`)`,
		fs.ID, fs.ClassID, fs.Term, types.JSON(raw), fs.DueDate.UTC(), fs.CreatedAt.UTC())
	if err != nil {
		return finance.FeeStructure{}, trapErr(err, nil, "inserting fee structure")
	}
	return fs, nil
}

func (repo financeRepository) GetFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) (finance.FeeStructure, error) {
	if !isUUID(id) {
		return finance.FeeStructure{}, finance.ErrFeeStructureNotFound
	}
	var row feeStructureRow
	if err := repo.bind(ctx, exec, &row, `SELECT `+feeStructureColumns+` FROM fee_structure WHERE id = ?`, id); err != nil {
		return finance.FeeStructure{}, trapErr(err, finance.ErrFeeStructureNotFound, "selecting fee structure")
	}
	return row.unboil()
}

func (repo financeRepository) QueryFeeStructures(ctx context.Context, classID, term string, exec ...core.DBExecutor) ([]finance.FeeStructure, error) {
	var w where
	if classID != "" {
		if !isUUID(classID) {
			return []finance.FeeStructure{}, nil
		}
		w.add("class_id = ?", classID)
	}
	if term != "" {
		w.add("term = ?", term)
	}

	var rows []feeStructureRow
	q := `SELECT ` + feeStructureColumns + ` FROM fee_structure` + w.String() + ` ORDER BY created_at, id`
	if err := repo.bind(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting fee structures")
	}
	res := make([]finance.FeeStructure, 0, len(rows))
	for _, r := range rows {
		fs, err := r.unboil()
		if err != nil {
			return nil, err
		}
		res = append(res, fs)
	}
	return res, nil
}

func (repo financeRepository) CreateCharges(ctx context.Context, charges []finance.Charge, exec ...core.DBExecutor) ([]finance.Charge, error) {
	if len(charges) == 0 {
		return []finance.Charge{}, nil
	}
	created := make([]finance.Charge, 0, len(charges))
	values := make([]string, 0, len(charges))
	args := make([]interface{}, 0, len(charges)*8)
	for _, c := range charges {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		values = append(values, "("+placeholders(8)+")")
		args = append(args, c.ID, c.StudentID, c.Term, c.Description, c.Amount, c.DueDate.UTC(),
			nullString(c.FeeStructureID), c.CreatedAt.UTC())
		created = append(created, c)
	}
	if _, err := repo.execute(ctx, exec, `INSERT INTO charge (`+chargeColumns+`) VALUES `+strings.Join(values, ", "), args...); err != nil {
		return nil, trapErr(err, nil, "inserting charges")
	}
	return created, nil
}

func (repo financeRepository) QueryCharges(ctx context.Context, filter finance.ChargeFilter, exec ...core.DBExecutor) ([]finance.Charge, error) {
	var w where
	if filter.StudentIDs != nil {
		ids := uuids(filter.StudentIDs)
		if len(ids) == 0 {
			return []finance.Charge{}, nil
		}
		w.add("student_id IN (?)", ids)
	}
	if filter.FeeStructureID != "" {
		if !isUUID(filter.FeeStructureID) {
			return []finance.Charge{}, nil
		}
		w.add("fee_structure_id = ?", filter.FeeStructureID)
	}

	var rows []chargeRow
	if err := repo.bind(ctx, exec, &rows, `SELECT `+chargeColumns+` FROM charge`+w.String()+` ORDER BY created_at, id`, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting charges")
	}
	res := make([]finance.Charge, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.unboil())
	}
	return res, nil
}

func (repo financeRepository) CreatePayment(ctx context.Context, p finance.Payment, exec ...core.DBExecutor) (finance.Payment, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := repo.execute(ctx, exec,
		`INSERT INTO payment (`+paymentColumns+`) VALUES (`+placeholders(8)+`)`,
		p.ID, p.StudentID, p.Amount, p.Method, p.Reference, p.PaidAt.UTC(), p.RecordedBy, p.CreatedAt.UTC())
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return finance.Payment{}, finance.ErrDuplicateReference
		}
		return finance.Payment{}, trapErr(err, nil, "inserting payment")
	}
	return p, nil
}

func (repo financeRepository) QueryPayments(ctx context.Context, filter finance.PaymentFilter, exec ...core.DBExecutor) ([]finance.Payment, error) {
	var w where
	if filter.StudentIDs != nil {
		ids := uuids(filter.StudentIDs)
		if len(ids) == 0 {
			return []finance.Payment{}, nil
		}
		w.add("student_id IN (?)", ids)
	}
	if filter.Reference != "" {
		w.add("reference = ?", filter.Reference)
	}

	var rows []paymentRow
	if err := repo.bind(ctx, exec, &rows, `SELECT `+paymentColumns+` FROM payment`+w.String()+` ORDER BY paid_at, id`, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting payments")
	}
	res := make([]finance.Payment, 0, len(rows))
	for _, r := range rows {
		res = append(res, finance.Payment(r))
	}
	return res, nil
}
