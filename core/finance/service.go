package finance

import (
	"context"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/school"
	"github.com/teachhub/backend/core/user"
)

var (
	// errors
	ErrFeeStructureNotFound = core.NewNotFoundError("fee structure not found")
	ErrDuplicateReference   = errors.New("a payment with this reference already exists")
	ErrNotAStudent          = errors.New("user is not a student")

	errNotFinance = "only the bursar, the principal or the owner may manage finances"
)

type (
	Repository interface {
		CreateFeeStructure(ctx context.Context, fs FeeStructure, exec ...core.DBExecutor) (FeeStructure, error)
		GetFeeStructure(ctx context.Context, id string, exec ...core.DBExecutor) (FeeStructure, error)
		QueryFeeStructures(ctx context.Context, classID, term string, exec ...core.DBExecutor) ([]FeeStructure, error)

		CreateCharges(ctx context.Context, charges []Charge, exec ...core.DBExecutor) ([]Charge, error)
		QueryCharges(ctx context.Context, filter ChargeFilter, exec ...core.DBExecutor) ([]Charge, error)

		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		QueryPayments(ctx context.Context, filter PaymentFilter, exec ...core.DBExecutor) ([]Payment, error)
	}

	Service interface {
		CreateFeeStructure(ctx context.Context, actor user.User, nf NewFeeStructure) (FeeStructure, error)
		GetFeeStructure(ctx context.Context, id string) (FeeStructure, error)
		QueryFeeStructures(ctx context.Context, classID, term string) ([]FeeStructure, error)
		// ApplyFeeStructure bills every active student of the class once and returns the number billed.
		ApplyFeeStructure(ctx context.Context, actor user.User, fs FeeStructure) (int, error)
		AddCharge(ctx context.Context, actor user.User, nc NewCharge) (Charge, error)
		RecordPayment(ctx context.Context, actor user.User, np NewPayment) (Payment, error)
		Balance(ctx context.Context, actor user.User, studentID string) (int64, error)
		Statement(ctx context.Context, actor user.User, studentID string, from, to time.Time) (Statement, error)
		Arrears(ctx context.Context, actor user.User, classID string) ([]Arrear, error)
	}

	service struct {
		conf      *core.Config
		db        core.DB
		repo      Repository
		schoolSvc school.Service
		usrSvc    user.Service
		mailSvc   core.EmailService
		logger    core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

// NewService returns a finance Service. db may be nil for in-memory repositories.
func NewService(
	conf *core.Config,
	db core.DB,
	repo Repository,
	schoolSvc school.Service,
	usrSvc user.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(schoolSvc, "schoolSvc"),
		vala.IsNotNil(usrSvc, "usrSvc"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{
		conf:      conf,
		db:        db,
		repo:      repo,
		schoolSvc: schoolSvc,
		usrSvc:    usrSvc,
		mailSvc:   mailSvc,
		logger:    logger,
	}
}

func checkFinance(actor user.User) error {
	if !actor.CanManageFinance() {
		return core.NewPermissionError(errNotFinance)
	}
	return nil
}

func (svc *service) student(ctx context.Context, id, field string) (user.User, error) {
	usr, err := svc.usrSvc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
		}
		return user.User{}, errors.Wrap(err, "finding student")
	}
	if !usr.IsStudent() {
		return user.User{}, core.NewValidationError(ErrNotAStudent, core.FieldError{Field: field, Error: ErrNotAStudent.Error()})
	}
	return usr, nil
}

func (svc *service) CreateFeeStructure(ctx context.Context, actor user.User, nf NewFeeStructure) (FeeStructure, error) {
	if err := checkFinance(actor); err != nil {
		return FeeStructure{}, err
	}
	if _, err := svc.schoolSvc.GetClass(ctx, nf.ClassID); err != nil {
		if core.IsNotFound(err) {
			return FeeStructure{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return FeeStructure{}, err
	}
	return svc.repo.CreateFeeStructure(ctx, FeeStructure{
		ClassID:   nf.ClassID,
		Term:      nf.Term,
		Items:     nf.Items,
		DueDate:   nf.DueDate.UTC(),
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) GetFeeStructure(ctx context.Context, id string) (FeeStructure, error) {
	return svc.repo.GetFeeStructure(ctx, id)
}

func (svc *service) QueryFeeStructures(ctx context.Context, classID, term string) ([]FeeStructure, error) {
	return svc.repo.QueryFeeStructures(ctx, classID, term)
}

func (svc *service) ApplyFeeStructure(ctx context.Context, actor user.User, fs FeeStructure) (int, error) {
	if err := checkFinance(actor); err != nil {
		return 0, err
	}
	roster, err := svc.schoolSvc.ClassList(ctx, fs.ClassID)
	if err != nil {
		return 0, errors.Wrap(err, "getting class list")
	}

	var billed int
	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		existing, err := svc.repo.QueryCharges(ctx, ChargeFilter{FeeStructureID: fs.ID}, exec)
		if err != nil {
			return errors.Wrap(err, "querying charges")
		}
		done := make(map[string]bool, len(existing))
		for _, c := range existing {
			done[c.StudentID] = true
		}

		now := time.Now().UTC()
		total := fs.Total()
		charges := make([]Charge, 0, len(roster))
		for _, e := range roster {
			if done[e.StudentID] {
				continue
			}
			charges = append(charges, Charge{
				StudentID:      e.StudentID,
				Term:           fs.Term,
				Description:    "Fees " + fs.Term,
				Amount:         total,
				DueDate:        fs.DueDate,
				FeeStructureID: fs.ID,
				CreatedAt:      now,
			})
		}
		if len(charges) == 0 {
			return nil
		}
		if _, err := svc.repo.CreateCharges(ctx, charges, exec); err != nil {
			return errors.Wrap(err, "creating charges")
		}
		billed = len(charges)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return billed, nil
}

func (svc *service) AddCharge(ctx context.Context, actor user.User, nc NewCharge) (Charge, error) {
	if err := checkFinance(actor); err != nil {
		return Charge{}, err
	}
	if _, err := svc.student(ctx, nc.StudentID, "student_id"); err != nil {
		return Charge{}, err
	}
	charges, err := svc.repo.CreateCharges(ctx, []Charge{{
		StudentID:   nc.StudentID,
		Term:        nc.Term,
		Description: nc.Description,
		Amount:      nc.Amount,
		DueDate:     nc.DueDate.UTC(),
		CreatedAt:   time.Now().UTC(),
	}})
	if err != nil {
		return Charge{}, err
	}
	return charges[0], nil
}

func (svc *service) RecordPayment(ctx context.Context, actor user.User, np NewPayment) (Payment, error) {
	if err := checkFinance(actor); err != nil {
		return Payment{}, err
	}
	student, err := svc.student(ctx, np.StudentID, "student_id")
	if err != nil {
		return Payment{}, err
	}

	now := time.Now().UTC()
	p := Payment{
		StudentID:  student.ID,
		Amount:     np.Amount,
		Method:     np.Method,
		Reference:  np.Reference,
		PaidAt:     now,
		RecordedBy: actor.ID,
		CreatedAt:  now,
	}
	if np.PaidAt != nil {
		p.PaidAt = np.PaidAt.UTC()
	}

	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		dups, err := svc.repo.QueryPayments(ctx, PaymentFilter{Reference: p.Reference}, exec)
		if err != nil {
			return errors.Wrap(err, "checking reference")
		}
		if len(dups) == 0 {
			p, err = svc.repo.CreatePayment(ctx, p, exec)
		}
		if len(dups) > 0 || errors.Cause(err) == ErrDuplicateReference {
			return core.NewValidationError(ErrDuplicateReference, core.FieldError{Field: "reference", Error: ErrDuplicateReference.Error()})
		}
		return err
	})
	if err != nil {
		return Payment{}, err
	}

	balance, err := svc.balance(ctx, student.ID)
	if err != nil {
		svc.logger.Error("computing balance for receipt", err, actor)
		return p, nil
	}
	svc.sendReceipt(student, p, balance)
	return p, nil
}

func (svc *service) sendReceipt(student user.User, p Payment, balance int64) {
	if student.Email == "" {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      "Payment Receipt " + p.Reference,
		TemplateName: core.TmplPaymentReceipt,
		TemplateData: map[string]string{
			"Name":      student.Name,
			"Amount":    FormatAmount(p.Amount, svc.conf.Currency),
			"Method":    strings.ToUpper(p.Method),
			"Reference": p.Reference,
			"PaidAt":    p.PaidAt.Format("2006-01-02 15:04"),
			"Balance":   FormatAmount(balance, svc.conf.Currency),
		},
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) canRead(actor user.User, studentID string) error {
	if actor.ID == studentID || actor.CanManageFinance() {
		return nil
	}
	return core.NewPermissionError("you cannot view this student's finances")
}

func (svc *service) balance(ctx context.Context, studentID string) (int64, error) {
	balances, err := svc.balances(ctx, []string{studentID})
	if err != nil {
		return 0, err
	}
	return balances[studentID], nil
}

// balances returns Σcharges − Σpayments per student.
func (svc *service) balances(ctx context.Context, studentIDs []string) (map[string]int64, error) {
	balances := make(map[string]int64, len(studentIDs))
	if len(studentIDs) == 0 {
		return balances, nil
	}
	charges, err := svc.repo.QueryCharges(ctx, ChargeFilter{StudentIDs: studentIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying charges")
	}
	payments, err := svc.repo.QueryPayments(ctx, PaymentFilter{StudentIDs: studentIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	for _, c := range charges {
		balances[c.StudentID] += c.Amount
	}
	for _, p := range payments {
		balances[p.StudentID] -= p.Amount
	}
	return balances, nil
}

func (svc *service) Balance(ctx context.Context, actor user.User, studentID string) (int64, error) {
	if err := svc.canRead(actor, studentID); err != nil {
		return 0, err
	}
	return svc.balance(ctx, studentID)
}

func (svc *service) Statement(ctx context.Context, actor user.User, studentID string, from, to time.Time) (Statement, error) {
	if err := svc.canRead(actor, studentID); err != nil {
		return Statement{}, err
	}
	if _, err := svc.usrSvc.GetByID(ctx, studentID); err != nil {
		return Statement{}, err
	}
	charges, err := svc.repo.QueryCharges(ctx, ChargeFilter{StudentIDs: []string{studentID}})
	if err != nil {
		return Statement{}, errors.Wrap(err, "querying charges")
	}
	payments, err := svc.repo.QueryPayments(ctx, PaymentFilter{StudentIDs: []string{studentID}})
	if err != nil {
		return Statement{}, errors.Wrap(err, "querying payments")
	}
	st := BuildStatement(charges, payments, from, to)
	st.StudentID = studentID
	st.Currency = svc.conf.Currency
	return st, nil
}

// BuildStatement returns the chronological ledger of charges and payments between from and to.
// Entries before from make up the opening balance. Zero bounds are open.
// Charges are billed on their creation time, payments on PaidAt; charges come first at equal times.
func BuildStatement(charges []Charge, payments []Payment, from, to time.Time) Statement {
	entries := make([]Entry, 0, len(charges)+len(payments))
	for _, c := range charges {
		entries = append(entries, Entry{Date: c.CreatedAt, Kind: EntryCharge, ID: c.ID, Description: c.Description, Debit: c.Amount})
	}
	for _, p := range payments {
		desc := "Payment " + strings.ToUpper(p.Method) + " " + p.Reference
		entries = append(entries, Entry{Date: p.PaidAt, Kind: EntryPayment, ID: p.ID, Description: desc, Credit: p.Amount})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind == EntryCharge
		}
		return entries[i].ID < entries[j].ID
	})

	st := Statement{From: from, To: to, Entries: []Entry{}}
	var running int64
	for _, e := range entries {
		if !to.IsZero() && e.Date.After(to) {
			break
		}
		running += e.Debit - e.Credit
		if !from.IsZero() && e.Date.Before(from) {
			st.OpeningBalance = running
			continue
		}
		e.Balance = running
		st.Entries = append(st.Entries, e)
	}
	st.ClosingBalance = running
	return st
}

// Arrears lists the active students of a class who owe money, largest balance first.
func (svc *service) Arrears(ctx context.Context, actor user.User, classID string) ([]Arrear, error) {
	if err := checkFinance(actor); err != nil {
		return nil, err
	}
	roster, err := svc.schoolSvc.ClassList(ctx, classID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(roster))
	for _, e := range roster {
		ids = append(ids, e.StudentID)
	}
	balances, err := svc.balances(ctx, ids)
	if err != nil {
		return nil, err
	}

	arrears := make([]Arrear, 0)
	for _, e := range roster {
		if b := balances[e.StudentID]; b > 0 {
			arrears = append(arrears, Arrear{StudentID: e.StudentID, AdmissionNo: e.AdmissionNo, Name: e.Name, Balance: b})
		}
	}
	sort.SliceStable(arrears, func(i, j int) bool {
		if arrears[i].Balance != arrears[j].Balance {
			return arrears[i].Balance > arrears[j].Balance
		}
		return strings.ToLower(arrears[i].Name) < strings.ToLower(arrears[j].Name)
	})
	return arrears, nil
}
