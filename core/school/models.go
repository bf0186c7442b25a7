package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/teachhub/backend/core"
)

// Enrolment statuses
const (
	EnrolmentActive    = "active"
	EnrolmentWithdrawn = "withdrawn"
)

type Class struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Code       string    `json:"code"`
	Department string    `json:"department"`
	Year       int       `json:"year"`
	TrainerID  string    `json:"trainer_id"` // class trainer; may be empty
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Unit is a subject or module taught to a Class by a trainer.
type Unit struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	ClassID   string    `json:"class_id"`
	TrainerID string    `json:"trainer_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Enrolment struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"class_id"`
	StudentID   string    `json:"student_id"`
	AdmissionNo string    `json:"admission_no"`
	Status      string    `json:"status"`
	EnrolledAt  time.Time `json:"enrolled_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (e Enrolment) IsActive() bool { return e.Status == EnrolmentActive }

// ClassListEntry is an active Enrolment joined with the student's profile.
type ClassListEntry struct {
	EnrolmentID string `json:"enrolment_id"`
	AdmissionNo string `json:"admission_no"`
	StudentID   string `json:"student_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

type NewClass struct {
	Name       string `json:"name" validate:"required,max=100"`
	Code       string `json:"code" validate:"required,max=30,alphanum_"`
	Department string `json:"department" validate:"max=100"`
	Year       int    `json:"year" validate:"required,min=2000,max=2100"`
	TrainerID  string `json:"trainer_id" validate:"omitempty,uuid"`
}

func (nc *NewClass) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Code = core.CleanString(nc.Code)
	nc.Department = core.CleanString(nc.Department)
	nc.TrainerID = core.CleanString(nc.TrainerID)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckClassCodeUniqueness(ctx, nc.Code)
}

type UpdateClass struct {
	Name       string  `json:"name" validate:"max=100"`
	Code       string  `json:"code" validate:"omitempty,max=30,alphanum_"`
	Department *string `json:"department" validate:"omitempty,max=100"`
	Year       int     `json:"year" validate:"omitempty,min=2000,max=2100"`
	TrainerID  *string `json:"trainer_id" validate:"omitempty"`
}

func (uc *UpdateClass) Validate(ctx context.Context, orig Class, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if code := core.CleanString(uc.Code); code != "" {
		uc.Code = code
	} else {
		uc.Code = orig.Code
	}
	if uc.Year == 0 {
		uc.Year = orig.Year
	}
	if uc.Department != nil {
		dept := core.CleanString(*uc.Department)
		uc.Department = &dept
	}
	if uc.TrainerID != nil {
		id := core.CleanString(*uc.TrainerID)
		uc.TrainerID = &id
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	return svc.CheckClassCodeUniqueness(ctx, uc.Code, orig)
}

type NewUnit struct {
	Code      string `json:"code" validate:"required,max=30"`
	Name      string `json:"name" validate:"required,max=100"`
	ClassID   string `json:"class_id" validate:"required,uuid"`
	TrainerID string `json:"trainer_id" validate:"required,uuid"`
}

func (nu *NewUnit) Validate(validate *validator.Validate) error {
	nu.Code = core.CleanString(nu.Code)
	nu.Name = core.CleanString(nu.Name)
	nu.ClassID = core.CleanString(nu.ClassID)
	nu.TrainerID = core.CleanString(nu.TrainerID)
	return validate.Struct(nu)
}

type UpdateUnit struct {
	Code      string `json:"code" validate:"max=30"`
	Name      string `json:"name" validate:"max=100"`
	TrainerID string `json:"trainer_id" validate:"omitempty,uuid"`
}

func (uu *UpdateUnit) Validate(orig Unit, validate *validator.Validate) error {
	if code := core.CleanString(uu.Code); code != "" {
		uu.Code = code
	} else {
		uu.Code = orig.Code
	}
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = orig.Name
	}
	if id := core.CleanString(uu.TrainerID); id != "" {
		uu.TrainerID = id
	} else {
		uu.TrainerID = orig.TrainerID
	}
	return validate.Struct(uu)
}

type NewEnrolment struct {
	StudentID   string `json:"student_id" validate:"required,uuid"`
	AdmissionNo string `json:"admission_no" validate:"required,max=30"`
}

func (ne *NewEnrolment) Validate(validate *validator.Validate) error {
	ne.StudentID = core.CleanString(ne.StudentID)
	ne.AdmissionNo = core.CleanString(ne.AdmissionNo)
	return validate.Struct(ne)
}

type ClassFilter struct {
	Search     string `query:"search"`
	Department string `query:"department"`
	Year       int    `query:"year"`
	TrainerID  string `query:"trainer"`
}

func (cf *ClassFilter) Clean() {
	cf.Search = core.CleanString(cf.Search)
	cf.Department = core.CleanString(cf.Department)
	cf.TrainerID = core.CleanString(cf.TrainerID)
}

type UnitFilter struct {
	ClassID   string   `query:"class"`
	TrainerID string   `query:"trainer"`
	IDs       []string `query:"-"`
}

func (uf *UnitFilter) Clean() {
	uf.ClassID = core.CleanString(uf.ClassID)
	uf.TrainerID = core.CleanString(uf.TrainerID)
}

type EnrolmentFilter struct {
	ClassID   string
	StudentID string
	Status    string
}

// ClassOrderingFields are the fields classes may be ordered by.
var ClassOrderingFields = []string{"name", "code", "department", "year", "created_at"}
