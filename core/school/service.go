package school

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/user"
)

var (
	// errors
	ErrClassNotFound     = core.NewNotFoundError("class not found")
	ErrUnitNotFound      = core.NewNotFoundError("unit not found")
	ErrEnrolmentNotFound = core.NewNotFoundError("enrolment not found")
	ErrClassCodeExists   = errors.New("a class with this code already exists")
	ErrAdmissionNoExists = errors.New("a student with this admission number already exists")
	ErrAlreadyEnrolled   = errors.New("student is already enrolled in this class")
	ErrNotAStudent       = errors.New("user is not a student")
	ErrNotATrainer       = errors.New("user is not a trainer")
)

type (
	Repository interface {
		CheckClassCodeUniqueness(ctx context.Context, code string, excludedIDs []string, exec ...core.DBExecutor) error
		CreateClass(ctx context.Context, class Class, exec ...core.DBExecutor) (Class, error)
		QueryClasses(ctx context.Context, filter *ClassFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Class, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		UpdateClass(ctx context.Context, class Class, exec ...core.DBExecutor) (Class, error)
		DeleteClass(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateUnit(ctx context.Context, unit Unit, exec ...core.DBExecutor) (Unit, error)
		QueryUnits(ctx context.Context, filter *UnitFilter, exec ...core.DBExecutor) ([]Unit, error)
		GetUnit(ctx context.Context, id string, exec ...core.DBExecutor) (Unit, error)
		UpdateUnit(ctx context.Context, unit Unit, exec ...core.DBExecutor) (Unit, error)
		DeleteUnit(ctx context.Context, id string, exec ...core.DBExecutor) error

		AdmissionNoExists(ctx context.Context, admissionNo string, exec ...core.DBExecutor) (bool, error)
		CreateEnrolment(ctx context.Context, enrolment Enrolment, exec ...core.DBExecutor) (Enrolment, error)
		QueryEnrolments(ctx context.Context, filter EnrolmentFilter, exec ...core.DBExecutor) ([]Enrolment, error)
		GetEnrolment(ctx context.Context, id string, exec ...core.DBExecutor) (Enrolment, error)
		UpdateEnrolment(ctx context.Context, enrolment Enrolment, exec ...core.DBExecutor) (Enrolment, error)
	}

	Service interface {
		CheckClassCodeUniqueness(ctx context.Context, code string, exclClasses ...Class) error
		CreateClass(ctx context.Context, nc NewClass) (Class, error)
		QueryClasses(ctx context.Context, filter *ClassFilter, ordering []core.DBOrdering) ([]Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		UpdateClass(ctx context.Context, class Class, uc UpdateClass) (Class, error)
		DeleteClass(ctx context.Context, id string) error

		CreateUnit(ctx context.Context, nu NewUnit) (Unit, error)
		QueryUnits(ctx context.Context, filter *UnitFilter) ([]Unit, error)
		GetUnit(ctx context.Context, id string) (Unit, error)
		UpdateUnit(ctx context.Context, unit Unit, uu UpdateUnit) (Unit, error)
		DeleteUnit(ctx context.Context, id string) error
		TrainerUnits(ctx context.Context, trainerID string) ([]Unit, error)

		Enrol(ctx context.Context, classID string, ne NewEnrolment) (Enrolment, error)
		Withdraw(ctx context.Context, enrolmentID string) (Enrolment, error)
		ClassList(ctx context.Context, classID string) ([]ClassListEntry, error)
		StudentEnrolments(ctx context.Context, studentID string) ([]Enrolment, error)
		IsActivelyEnrolled(ctx context.Context, studentID, classID string) (bool, error)

		// CanViewClassList reports whether usr is an admin, the class trainer or trains a unit of the class.
		CanViewClassList(ctx context.Context, usr user.User, classID string) (bool, error)
		// CanTeach reports whether usr is an admin or the trainer of unit.
		CanTeach(usr user.User, unit Unit) bool
	}

	// RosterListener is told when the active enrolments of a class change.
	RosterListener interface {
		RosterChanged(classID string)
	}

	service struct {
		repo     Repository
		usrSvc   user.Service
		listener RosterListener
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, usrSvc user.Service, listener RosterListener) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(usrSvc, "usrSvc"),
		vala.IsNotNil(listener, "listener"),
	).CheckAndPanic()

	return &service{repo: repo, usrSvc: usrSvc, listener: listener}
}

func (svc *service) CheckClassCodeUniqueness(ctx context.Context, code string, exclClasses ...Class) error {
	ids := make([]string, 0, len(exclClasses))
	for _, c := range exclClasses {
		ids = append(ids, c.ID)
	}
	if err := svc.repo.CheckClassCodeUniqueness(ctx, code, ids); err != nil {
		if errors.Cause(err) == ErrClassCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: ErrClassCodeExists.Error()})
		}
		return err
	}
	return nil
}

// checkTrainer fails with a ValidationError on field when id is not an active trainer.
func (svc *service) checkTrainer(ctx context.Context, id, field string) error {
	usr, err := svc.usrSvc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
		}
		return errors.Wrap(err, "finding trainer")
	}
	if !usr.IsTrainer() || !usr.IsActive {
		return core.NewValidationError(ErrNotATrainer, core.FieldError{Field: field, Error: ErrNotATrainer.Error()})
	}
	return nil
}

func (svc *service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	if nc.TrainerID != "" {
		if err := svc.checkTrainer(ctx, nc.TrainerID, "trainer_id"); err != nil {
			return Class{}, err
		}
	}
	now := time.Now().UTC()
	return svc.repo.CreateClass(ctx, Class{
		Name:       nc.Name,
		Code:       nc.Code,
		Department: nc.Department,
		Year:       nc.Year,
		TrainerID:  nc.TrainerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (svc *service) QueryClasses(ctx context.Context, filter *ClassFilter, ordering []core.DBOrdering) ([]Class, error) {
	if err := core.CheckOrdering(ordering, ClassOrderingFields...); err != nil {
		return nil, err
	}
	return svc.repo.QueryClasses(ctx, filter, ordering)
}

func (svc *service) GetClass(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) UpdateClass(ctx context.Context, class Class, uc UpdateClass) (Class, error) {
	if uc.TrainerID != nil && *uc.TrainerID != "" && *uc.TrainerID != class.TrainerID {
		if err := svc.checkTrainer(ctx, *uc.TrainerID, "trainer_id"); err != nil {
			return Class{}, err
		}
	}
	class.Name = uc.Name
	class.Code = uc.Code
	class.Year = uc.Year
	if uc.Department != nil {
		class.Department = *uc.Department
	}
	if uc.TrainerID != nil {
		class.TrainerID = *uc.TrainerID
	}
	class.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClass(ctx, class)
}

func (svc *service) DeleteClass(ctx context.Context, id string) error {
	return svc.repo.DeleteClass(ctx, id)
}

func (svc *service) CreateUnit(ctx context.Context, nu NewUnit) (Unit, error) {
	if _, err := svc.repo.GetClass(ctx, nu.ClassID); err != nil {
		if core.IsNotFound(err) {
			return Unit{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Unit{}, errors.Wrap(err, "finding class")
	}
	if err := svc.checkTrainer(ctx, nu.TrainerID, "trainer_id"); err != nil {
		return Unit{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateUnit(ctx, Unit{
		Code:      nu.Code,
		Name:      nu.Name,
		ClassID:   nu.ClassID,
		TrainerID: nu.TrainerID,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) QueryUnits(ctx context.Context, filter *UnitFilter) ([]Unit, error) {
	return svc.repo.QueryUnits(ctx, filter)
}

func (svc *service) GetUnit(ctx context.Context, id string) (Unit, error) {
	return svc.repo.GetUnit(ctx, id)
}

func (svc *service) UpdateUnit(ctx context.Context, unit Unit, uu UpdateUnit) (Unit, error) {
	if uu.TrainerID != unit.TrainerID {
		if err := svc.checkTrainer(ctx, uu.TrainerID, "trainer_id"); err != nil {
			return Unit{}, err
		}
	}
	unit.Code = uu.Code
	unit.Name = uu.Name
	unit.TrainerID = uu.TrainerID
	unit.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUnit(ctx, unit)
}

func (svc *service) DeleteUnit(ctx context.Context, id string) error {
	return svc.repo.DeleteUnit(ctx, id)
}

func (svc *service) TrainerUnits(ctx context.Context, trainerID string) ([]Unit, error) {
	return svc.repo.QueryUnits(ctx, &UnitFilter{TrainerID: trainerID})
}

func (svc *service) Enrol(ctx context.Context, classID string, ne NewEnrolment) (Enrolment, error) {
	if _, err := svc.repo.GetClass(ctx, classID); err != nil {
		return Enrolment{}, err
	}

	student, err := svc.usrSvc.GetByID(ctx, ne.StudentID)
	if err != nil {
		if core.IsNotFound(err) {
			return Enrolment{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return Enrolment{}, errors.Wrap(err, "finding student")
	}
	if !student.IsStudent() {
		return Enrolment{}, core.NewValidationError(ErrNotAStudent, core.FieldError{Field: "student_id", Error: ErrNotAStudent.Error()})
	}

	active, err := svc.IsActivelyEnrolled(ctx, student.ID, classID)
	if err != nil {
		return Enrolment{}, err
	}
	if active {
		return Enrolment{}, core.NewValidationError(ErrAlreadyEnrolled, core.FieldError{Field: "student_id", Error: ErrAlreadyEnrolled.Error()})
	}

	exists, err := svc.repo.AdmissionNoExists(ctx, ne.AdmissionNo)
	if err != nil {
		return Enrolment{}, errors.Wrap(err, "checking admission number")
	}
	if exists {
		return Enrolment{}, core.NewValidationError(ErrAdmissionNoExists, core.FieldError{Field: "admission_no", Error: ErrAdmissionNoExists.Error()})
	}

	now := time.Now().UTC()
	enrolment, err := svc.repo.CreateEnrolment(ctx, Enrolment{
		ClassID:     classID,
		StudentID:   student.ID,
		AdmissionNo: ne.AdmissionNo,
		Status:      EnrolmentActive,
		EnrolledAt:  now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Enrolment{}, err
	}
	svc.listener.RosterChanged(classID)
	return enrolment, nil
}

func (svc *service) Withdraw(ctx context.Context, enrolmentID string) (Enrolment, error) {
	enrolment, err := svc.repo.GetEnrolment(ctx, enrolmentID)
	if err != nil {
		return Enrolment{}, err
	}
	if !enrolment.IsActive() {
		return enrolment, nil
	}
	enrolment.Status = EnrolmentWithdrawn
	enrolment.UpdatedAt = time.Now().UTC()
	if enrolment, err = svc.repo.UpdateEnrolment(ctx, enrolment); err != nil {
		return Enrolment{}, err
	}
	svc.listener.RosterChanged(enrolment.ClassID)
	return enrolment, nil
}

// ClassList returns the active enrolments of a class, sorted by student name.
func (svc *service) ClassList(ctx context.Context, classID string) ([]ClassListEntry, error) {
	if _, err := svc.repo.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	enrolments, err := svc.repo.QueryEnrolments(ctx, EnrolmentFilter{ClassID: classID, Status: EnrolmentActive})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolments")
	}

	ids := make([]string, 0, len(enrolments))
	for _, e := range enrolments {
		ids = append(ids, e.StudentID)
	}
	students, err := svc.usrSvc.GetByIDs(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "finding students")
	}
	byID := make(map[string]user.User, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}

	list := make([]ClassListEntry, 0, len(enrolments))
	for _, e := range enrolments {
		s := byID[e.StudentID]
		list = append(list, ClassListEntry{
			EnrolmentID: e.ID,
			AdmissionNo: e.AdmissionNo,
			StudentID:   e.StudentID,
			Name:        s.Name,
			Email:       s.Email,
			Phone:       s.Phone,
		})
	}
	sort.SliceStable(list, func(i, j int) bool {
		ni, nj := strings.ToLower(list[i].Name), strings.ToLower(list[j].Name)
		if ni != nj {
			return ni < nj
		}
		return list[i].AdmissionNo < list[j].AdmissionNo
	})
	return list, nil
}

func (svc *service) StudentEnrolments(ctx context.Context, studentID string) ([]Enrolment, error) {
	return svc.repo.QueryEnrolments(ctx, EnrolmentFilter{StudentID: studentID, Status: EnrolmentActive})
}

func (svc *service) IsActivelyEnrolled(ctx context.Context, studentID, classID string) (bool, error) {
	enrolments, err := svc.repo.QueryEnrolments(ctx, EnrolmentFilter{ClassID: classID, StudentID: studentID, Status: EnrolmentActive})
	if err != nil {
		return false, errors.Wrap(err, "querying enrolments")
	}
	return len(enrolments) > 0, nil
}

func (svc *service) CanViewClassList(ctx context.Context, usr user.User, classID string) (bool, error) {
	if usr.IsAdmin() {
		return true, nil
	}
	if !usr.IsTrainer() {
		return false, nil
	}
	class, err := svc.repo.GetClass(ctx, classID)
	if err != nil {
		return false, err
	}
	if class.TrainerID == usr.ID {
		return true, nil
	}
	units, err := svc.repo.QueryUnits(ctx, &UnitFilter{ClassID: classID, TrainerID: usr.ID})
	if err != nil {
		return false, errors.Wrap(err, "querying units")
	}
	return len(units) > 0, nil
}

func (svc *service) CanTeach(usr user.User, unit Unit) bool {
	return usr.IsAdmin() || (usr.IsTrainer() && unit.TrainerID == usr.ID)
}
