package finance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/teachhub/backend/core"
)

// Payment methods
const (
	MethodCash  = "cash"
	MethodMpesa = "mpesa"
	MethodBank  = "bank"
	MethodCard  = "card"
)

// Statement entry kinds
const (
	EntryCharge  = "charge"
	EntryPayment = "payment"
)

// MaxAmount bounds any single amount and any fee structure total, in minor units.
const MaxAmount int64 = 1e13

var (
	Methods = []string{MethodCash, MethodMpesa, MethodBank, MethodCard}

	errTotalTooLarge = fmt.Sprintf("total must be %s or less", strconv.FormatInt(MaxAmount, 10))

	paymentMethodTag  = "payment_method"
	paymentMethodText = "must be one of cash, mpesa, bank or card"
)

// InitValidators registers the finance validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, paymentMethodTag, paymentMethodText, Methods...)
}

// FormatAmount formats minor units: FormatAmount(123450, "KES") == "KES 1,234.50".
func FormatAmount(amount int64, currency string) string {
	sign := ""
	mag := uint64(amount)
	if amount < 0 {
		sign = "-"
		mag = -mag
	}
	whole := strconv.FormatUint(mag/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s %s%s.%02d", currency, sign, b.String(), mag%100)
}

type FeeItem struct {
	Name   string `json:"name" validate:"required,max=100"`
	Amount int64  `json:"amount" validate:"required,gt=0,max=10000000000000"`
}

type FeeStructure struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	Term      string    `json:"term"`
	Items     []FeeItem `json:"items"`
	DueDate   time.Time `json:"due_date"`
	CreatedAt time.Time `json:"created_at"`
}

func (fs FeeStructure) Total() int64 {
	var total int64
	for _, it := range fs.Items {
		total += it.Amount
	}
	return total
}

type Charge struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	Term           string    `json:"term"`
	Description    string    `json:"description"`
	Amount         int64     `json:"amount"`
	DueDate        time.Time `json:"due_date"`
	FeeStructureID string    `json:"fee_structure_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type Payment struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	Amount     int64     `json:"amount"`
	Method     string    `json:"method"`
	Reference  string    `json:"reference"`
	PaidAt     time.Time `json:"paid_at"`
	RecordedBy string    `json:"recorded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type NewFeeStructure struct {
	ClassID string    `json:"class_id" validate:"required,uuid"`
	Term    string    `json:"term" validate:"required,max=30"`
	Items   []FeeItem `json:"items" validate:"required,min=1,dive"`
	DueDate time.Time `json:"due_date" validate:"required"`
}

func (nf *NewFeeStructure) Validate(validate *validator.Validate) error {
	nf.ClassID = core.CleanString(nf.ClassID)
	nf.Term = core.CleanString(nf.Term)
	for i := range nf.Items {
		nf.Items[i].Name = core.CleanString(nf.Items[i].Name)
	}
	if err := validate.Struct(nf); err != nil {
		return err
	}

	// items are each within MaxAmount so the running sum stays below 2*MaxAmount
	var total int64
	for _, it := range nf.Items {
		total += it.Amount
		if total > MaxAmount {
			return core.NewValidationError(nil, core.FieldError{Field: "items", Error: errTotalTooLarge})
		}
	}
	return nil
}

type NewCharge struct {
	StudentID   string    `json:"student_id" validate:"required,uuid"`
	Term        string    `json:"term" validate:"required,max=30"`
	Description string    `json:"description" validate:"required,max=200"`
	Amount      int64     `json:"amount" validate:"required,gt=0,max=10000000000000"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

func (nc *NewCharge) Validate(validate *validator.Validate) error {
	nc.StudentID = core.CleanString(nc.StudentID)
	nc.Term = core.CleanString(nc.Term)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type NewPayment struct {
	StudentID string     `json:"student_id" validate:"required,uuid"`
	Amount    int64      `json:"amount" validate:"required,gt=0,max=10000000000000"`
	Method    string     `json:"method" validate:"required,payment_method"`
	Reference string     `json:"reference" validate:"required,max=50"`
	PaidAt    *time.Time `json:"paid_at"` // defaults to now
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID)
	np.Method = core.CleanString(np.Method, true /* lower */)
	np.Reference = strings.ToUpper(core.CleanString(np.Reference))
	return validate.Struct(np)
}

// Entry is a line of a Statement.
type Entry struct {
	Date        time.Time `json:"date"`
	Kind        string    `json:"kind"`
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Debit       int64     `json:"debit"`
	Credit      int64     `json:"credit"`
	Balance     int64     `json:"balance"`
}

type Statement struct {
	StudentID      string    `json:"student_id"`
	Currency       string    `json:"currency"`
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	OpeningBalance int64     `json:"opening_balance"`
	Entries        []Entry   `json:"entries"`
	ClosingBalance int64     `json:"closing_balance"`
}

// StatementQuery bounds a Statement with YYYY-MM-DD dates; empty dates leave the range open.
type StatementQuery struct {
	From string `json:"from" query:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" query:"to" validate:"omitempty,datetime=2006-01-02"`
}

// Range validates sq and returns its bounds. To is inclusive of the whole day.
func (sq *StatementQuery) Range(validate *validator.Validate) (from, to time.Time, err error) {
	sq.From = core.CleanString(sq.From)
	sq.To = core.CleanString(sq.To)
	if err = validate.Struct(sq); err != nil {
		return
	}
	if sq.From != "" {
		from, _ = time.Parse("2006-01-02", sq.From)
	}
	if sq.To != "" {
		to, _ = time.Parse("2006-01-02", sq.To)
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		err = core.NewValidationError(nil, core.FieldError{Field: "to", Error: "must be on or after from"})
	}
	return
}

type Arrear struct {
	StudentID   string `json:"student_id"`
	AdmissionNo string `json:"admission_no"`
	Name        string `json:"name"`
	Balance     int64  `json:"balance"`
}

type ChargeFilter struct {
	StudentIDs     []string
	FeeStructureID string
}

type PaymentFilter struct {
	StudentIDs []string
	Reference  string
}
