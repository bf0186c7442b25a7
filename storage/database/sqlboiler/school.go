package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/school"
)

const (
	classColumns     = `id, name, code, department, year, trainer_id, created_at, updated_at`
	unitColumns      = `id, code, name, class_id, trainer_id, created_at, updated_at`
	enrolmentColumns = `id, class_id, student_id, admission_no, status, enrolled_at, updated_at`
)

type classRow struct {
	ID         string      `boil:"id"`
	Name       string      `boil:"name"`
	Code       string      `boil:"code"`
	Department string      `boil:"department"`
	Year       int         `boil:"year"`
	TrainerID  null.String `boil:"trainer_id"`
	CreatedAt  time.Time   `boil:"created_at"`
	UpdatedAt  time.Time   `boil:"updated_at"`
}

func (r classRow) unboil() school.Class {
	return school.Class{
		ID:         r.ID,
		Name:       r.Name,
		Code:       r.Code,
		Department: r.Department,
		Year:       r.Year,
		TrainerID:  r.TrainerID.String,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type unitRow struct {
	ID        string    `boil:"id"`
	Code      string    `boil:"code"`
	Name      string    `boil:"name"`
	ClassID   string    `boil:"class_id"`
	TrainerID string    `boil:"trainer_id"`
	CreatedAt time.Time `boil:"created_at"`
	UpdatedAt time.Time `boil:"updated_at"`
}

func (r unitRow) unboil() school.Unit {
	return school.Unit(r)
}

type enrolmentRow struct {
	ID          string    `boil:"id"`
	ClassID     string    `boil:"class_id"`
	StudentID   string    `boil:"student_id"`
	AdmissionNo string    `boil:"admission_no"`
	Status      string    `boil:"status"`
	EnrolledAt  time.Time `boil:"enrolled_at"`
	UpdatedAt   time.Time `boil:"updated_at"`
}

func (r enrolmentRow) unboil() school.Enrolment {
	return school.Enrolment(r)
}

type schoolRepository struct {
	repository
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) school.Repository {
	return &schoolRepository{repository{exec: exec}}
}

func (repo schoolRepository) CheckClassCodeUniqueness(ctx context.Context, code string, excludedIDs []string, exec ...core.DBExecutor) error {
	var w where
	w.add("LOWER(code) = LOWER(?)", code)
	if ids := uuids(excludedIDs); len(ids) > 0 {
		w.add("id NOT IN (?)", ids)
	}
	var found struct {
		Exists bool `boil:"exists"`
	}
	if err := repo.bind(ctx, exec, &found, `SELECT EXISTS (SELECT 1 FROM class`+w.String()+`) AS exists`, w.args...); err != nil {
		return errors.Wrap(err, "checking class code uniqueness")
	}
	if found.Exists {
		return school.ErrClassCodeExists
	}
	return nil
}

func (repo schoolRepository) CreateClass(ctx context.Context, class school.Class, exec ...core.DBExecutor) (school.Class, error) {
	if class.ID == "" {
		class.ID = uuid.New().String()
	}
	_, err := repo.execute(ctx, exec,
		`INSERT INTO class (`+classColumns+`) VALUES (`+placeholders(8)+`)`,
		class.ID, class.Name, class.Code, class.Department, class.Year,
		null.NewString(class.TrainerID, class.TrainerID != ""), class.CreatedAt.UTC(), class.UpdatedAt.UTC())
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return school.Class{}, school.ErrClassCodeExists
		}
		return school.Class{}, trapErr(err, nil, "inserting class")
	}
	return class, nil
}

func (repo schoolRepository) QueryClasses(ctx context.Context, filter *school.ClassFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]school.Class, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(name ILIKE ? OR code ILIKE ?)", val, val)
		}
		if filter.Department != "" {
			w.add("LOWER(department) = LOWER(?)", filter.Department)
		}
		if filter.Year != 0 {
			w.add("year = ?", filter.Year)
		}
		if filter.TrainerID != "" {
			if !isUUID(filter.TrainerID) {
				return []school.Class{}, nil
			}
			w.add("trainer_id = ?", filter.TrainerID)
		}
	}

	var rows []classRow
	q := `SELECT ` + classColumns + ` FROM class` + w.String() + orderClause(ordering, "code ASC")
	if err := repo.bind(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting classes")
	}
	classes := make([]school.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.unboil())
	}
	return classes, nil
}

func (repo schoolRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (school.Class, error) {
	if !isUUID(id) {
		return school.Class{}, school.ErrClassNotFound
	}
	var row classRow
	if err := repo.bind(ctx, exec, &row, `SELECT `+classColumns+` FROM class WHERE id = ?`, id); err != nil {
		return school.Class{}, trapErr(err, school.ErrClassNotFound, "selecting class")
	}
	return row.unboil(), nil
}

func (repo schoolRepository) UpdateClass(ctx context.Context, class school.Class, exec ...core.DBExecutor) (school.Class, error) {
	res, err := repo.execute(ctx, exec,
		`UPDATE class SET name = ?, code = ?, department = ?, year = ?, trainer_id = ?, updated_at = ? WHERE id = ?`,
		class.Name, class.Code, class.Department, class.Year,
		null.NewString(class.TrainerID, class.TrainerID != ""), class.UpdatedAt.UTC(), class.ID)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return school.Class{}, school.ErrClassCodeExists
		}
		return school.Class{}, trapErr(err, nil, "updating class")
	}
	if err := checkAffected(res, school.ErrClassNotFound); err != nil {
		return school.Class{}, err
	}
	return class, nil
}

func (repo schoolRepository) DeleteClass(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return school.ErrClassNotFound
	}
	res, err := repo.execute(ctx, exec, `DELETE FROM class WHERE id = ?`, id)
	if err != nil {
		return trapErr(err, nil, "deleting class")
	}
	return checkAffected(res, school.ErrClassNotFound)
}

func (repo schoolRepository) CreateUnit(ctx context.Context, unit school.Unit, exec ...core.DBExecutor) (school.Unit, error) {
	if unit.ID == "" {
		unit.ID = uuid.New().String()
	}
	_, err := repo.execute(ctx, exec,
		`INSERT INTO unit (`+unitColumns+`) VALUES (`+placeholders(7)+`)`,
		unit.ID, unit.Code, unit.Name, unit.ClassID, unit.TrainerID, unit.CreatedAt.UTC(), unit.UpdatedAt.UTC())
	if err != nil {
		return school.Unit{}, trapErr(err, nil, "inserting unit")
	}
	return unit, nil
}

func (repo schoolRepository) QueryUnits(ctx context.Context, filter *school.UnitFilter, exec ...core.DBExecutor) ([]school.Unit, error) {
	var w where
	if filter != nil {
		if filter.ClassID != "" {
			w.add("class_id = ?", filter.ClassID)
		}
		if filter.TrainerID != "" {
			w.add("trainer_id = ?", filter.TrainerID)
		}
		if filter.IDs != nil {
			ids := uuids(filter.IDs)
			if len(ids) == 0 {
				return []school.Unit{}, nil
			}
			w.add("id IN (?)", ids)
		}
		if (filter.ClassID != "" && !isUUID(filter.ClassID)) || (filter.TrainerID != "" && !isUUID(filter.TrainerID)) {
			return []school.Unit{}, nil
		}
	}

	var rows []unitRow
	if err := repo.bind(ctx, exec, &rows, `SELECT `+unitColumns+` FROM unit`+w.String()+` ORDER BY code, id`, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting units")
	}
	units := make([]school.Unit, 0, len(rows))
	for _, r := range rows {
		units = append(units, r.unboil())
	}
	return units, nil
}

func (repo schoolRepository) GetUnit(ctx context.Context, id string, exec ...core.DBExecutor) (school.Unit, error) {
	if !isUUID(id) {
		return school.Unit{}, school.ErrUnitNotFound
	}
	var row unitRow
	if err := repo.bind(ctx, exec, &row, `SELECT `+unitColumns+` FROM unit WHERE id = ?`, id); err != nil {
		return school.Unit{}, trapErr(err, school.ErrUnitNotFound, "selecting unit")
	}
	return row.unboil(), nil
}

func (repo schoolRepository) UpdateUnit(ctx context.Context, unit school.Unit, exec ...core.DBExecutor) (school.Unit, error) {
	res, err := repo.execute(ctx, exec,
		`UPDATE unit SET code = ?, name = ?, trainer_id = ?, updated_at = ? WHERE id = ?`,
		unit.Code, unit.Name, unit.TrainerID, unit.UpdatedAt.UTC(), unit.ID)
	if err != nil {
		return school.Unit{}, trapErr(err, nil, "updating unit")
	}
	if err := checkAffected(res, school.ErrUnitNotFound); err != nil {
		return school.Unit{}, err
	}
	return unit, nil
}

func (repo schoolRepository) DeleteUnit(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return school.ErrUnitNotFound
	}
	res, err := repo.execute(ctx, exec, `DELETE FROM unit WHERE id = ?`, id)
	if err != nil {
		return trapErr(err, nil, "deleting unit")
	}
	return checkAffected(res, school.ErrUnitNotFound)
}

func (repo schoolRepository) AdmissionNoExists(ctx context.Context, admissionNo string, exec ...core.DBExecutor) (bool, error) {
	var found struct {
		Exists bool `boil:"exists"`
	}
	err := repo.bind(ctx, exec, &found,
		`SELECT EXISTS (SELECT 1 FROM enrolment WHERE LOWER(admission_no) = LOWER(?)) AS exists`, admissionNo)
	if err != nil {
		return false, errors.Wrap(err, "checking admission number")
	}
	return found.Exists, nil
}

func (repo schoolRepository) CreateEnrolment(ctx context.Context, e school.Enrolment, exec ...core.DBExecutor) (school.Enrolment, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := repo.execute(ctx, exec,
		`INSERT INTO enrolment (`+enrolmentColumns+`) VALUES (`+placeholders(7)+`)`,
		e.ID, e.ClassID, e.StudentID, e.AdmissionNo, e.Status, e.EnrolledAt.UTC(), e.UpdatedAt.UTC())
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return school.Enrolment{}, school.ErrAdmissionNoExists
		}
		return school.Enrolment{}, trapErr(err, nil, "inserting enrolment")
	}
	return e, nil
}

func (repo schoolRepository) QueryEnrolments(ctx context.Context, filter school.EnrolmentFilter, exec ...core.DBExecutor) ([]school.Enrolment, error) {
	var w where
	for _, id := range []string{filter.ClassID, filter.StudentID} {
		if id != "" && !isUUID(id) {
			return []school.Enrolment{}, nil
		}
	}
	if filter.ClassID != "" {
		w.add("class_id = ?", filter.ClassID)
	}
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	var rows []enrolmentRow
	if err := repo.bind(ctx, exec, &rows, `SELECT `+enrolmentColumns+` FROM enrolment`+w.String()+` ORDER BY enrolled_at, id`, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting enrolments")
	}
	enrolments := make([]school.Enrolment, 0, len(rows))
	for _, r := range rows {
		enrolments = append(enrolments, r.unboil())
	}
	return enrolments, nil
}

func (repo schoolRepository) GetEnrolment(ctx context.Context, id string, exec ...core.DBExecutor) (school.Enrolment, error) {
	if !isUUID(id) {
		return school.Enrolment{}, school.ErrEnrolmentNotFound
	}
	var row enrolmentRow
	if err := repo.bind(ctx, exec, &row, `SELECT `+enrolmentColumns+` FROM enrolment WHERE id = ?`, id); err != nil {
		return school.Enrolment{}, trapErr(err, school.ErrEnrolmentNotFound, "selecting enrolment")
	}
	return row.unboil(), nil
}

func (repo schoolRepository) UpdateEnrolment(ctx context.Context, e school.Enrolment, exec ...core.DBExecutor) (school.Enrolment, error) {
	res, err := repo.execute(ctx, exec,
		`UPDATE enrolment SET status = ?, updated_at = ? WHERE id = ?`, e.Status, e.UpdatedAt.UTC(), e.ID)
	if err != nil {
		return school.Enrolment{}, trapErr(err, nil, "updating enrolment")
	}
	if err := checkAffected(res, school.ErrEnrolmentNotFound); err != nil {
		return school.Enrolment{}, err
	}
	return e, nil
}
