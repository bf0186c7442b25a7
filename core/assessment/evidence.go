package assessment

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/user"
)

// EvidencePath is where an evidence file is stored in the blob store.
func EvidencePath(studentID, evidenceID, fileName string) string {
	return path.Join("poe", studentID, evidenceID, safeFileName(fileName))
}

func safeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "file"
	}
	return name
}

// limitedReader fails once more than n bytes were read.
type limitedReader struct {
	r io.Reader
	n int64
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	n, err := lr.r.Read(p)
	lr.n -= int64(n)
	if lr.n < 0 {
		return n, ErrEvidenceTooLarge
	}
	return n, err
}

func (svc *service) SubmitEvidence(ctx context.Context, actor user.User, ne NewEvidence, file File) (Evidence, error) {
	if !actor.IsStudent() {
		return Evidence{}, core.NewPermissionError("only students may submit evidence")
	}
	if file.Size > MaxEvidenceSize {
		return Evidence{}, core.NewValidationError(ErrEvidenceTooLarge, core.FieldError{Field: "file", Error: ErrEvidenceTooLarge.Error()})
	}

	unit, err := svc.schoolSvc.GetUnit(ctx, ne.UnitID)
	if err != nil {
		if core.IsNotFound(err) {
			return Evidence{}, core.NewValidationError(err, core.FieldError{Field: "unit_id", Error: err.Error()})
		}
		return Evidence{}, err
	}
	enrolled, err := svc.schoolSvc.IsActivelyEnrolled(ctx, actor.ID, unit.ClassID)
	if err != nil {
		return Evidence{}, err
	}
	if !enrolled {
		return Evidence{}, core.NewPermissionError(ErrNotEnrolled.Error())
	}
	if ne.AssessmentID != "" {
		a, err := svc.repo.GetAssessment(ctx, ne.AssessmentID)
		if err != nil {
			if core.IsNotFound(err) {
				return Evidence{}, core.NewValidationError(err, core.FieldError{Field: "assessment_id", Error: err.Error()})
			}
			return Evidence{}, err
		}
		if a.UnitID != unit.ID {
			return Evidence{}, core.NewValidationError(ErrAssessmentNotUnit, core.FieldError{Field: "assessment_id", Error: ErrAssessmentNotUnit.Error()})
		}
	}

	ev := Evidence{
		ID:           uuid.New().String(),
		StudentID:    actor.ID,
		UnitID:       unit.ID,
		AssessmentID: ne.AssessmentID,
		Title:        ne.Title,
		Description:  ne.Description,
		FileName:     safeFileName(file.Name),
		ContentType:  file.ContentType,
		Status:       EvidenceSubmitted,
		SubmittedAt:  time.Now().UTC(),
	}
	if ev.ContentType == "" {
		ev.ContentType = "application/octet-stream"
	}
	ev.StoragePath = EvidencePath(ev.StudentID, ev.ID, ev.FileName)

	size, err := svc.blobs.Put(ctx, ev.StoragePath, ev.ContentType, &limitedReader{r: file.Content, n: MaxEvidenceSize})
	if err != nil {
		svc.deleteBlob(ev.StoragePath)
		if errors.Cause(err) == ErrEvidenceTooLarge {
			return Evidence{}, core.NewValidationError(ErrEvidenceTooLarge, core.FieldError{Field: "file", Error: ErrEvidenceTooLarge.Error()})
		}
		return Evidence{}, errors.Wrap(err, "storing evidence file")
	}
	ev.Size = size

	created, err := svc.repo.CreateEvidence(ctx, ev)
	if err != nil {
		svc.deleteBlob(ev.StoragePath)
		return Evidence{}, err
	}
	return created, nil
}

func (svc *service) deleteBlob(p string) {
	// ctx of the request may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := svc.blobs.Delete(ctx, p); err != nil {
		svc.logger.Error("deleting evidence file "+p, err)
	}
}

// QueryEvidence restricts students to their own evidence and trainers to the units they teach.
func (svc *service) QueryEvidence(ctx context.Context, actor user.User, filter *EvidenceFilter) ([]Evidence, error) {
	if filter == nil {
		filter = new(EvidenceFilter)
	}
	switch {
	case actor.IsAdmin():
	case actor.IsTrainer():
		units, err := svc.schoolSvc.TrainerUnits(ctx, actor.ID)
		if err != nil {
			return nil, errors.Wrap(err, "querying units")
		}
		if len(units) == 0 {
			return []Evidence{}, nil
		}
		filter.UnitIDs = make([]string, 0, len(units))
		for _, u := range units {
			filter.UnitIDs = append(filter.UnitIDs, u.ID)
		}
	default:
		filter.StudentID = actor.ID
	}
	return svc.repo.QueryEvidence(ctx, filter)
}

func (svc *service) GetEvidence(ctx context.Context, id string) (Evidence, error) {
	return svc.repo.GetEvidence(ctx, id)
}

func (svc *service) VerifyEvidence(ctx context.Context, actor user.User, ev Evidence, v Verification) (Evidence, error) {
	if _, err := svc.teachableUnit(ctx, actor, ev.UnitID); err != nil {
		return Evidence{}, err
	}
	if ev.Status != EvidenceSubmitted {
		return Evidence{}, core.NewValidationError(ErrEvidenceReviewed)
	}
	now := time.Now().UTC()
	ev.Status = v.Decision
	ev.Feedback = v.Feedback
	ev.VerifiedBy = actor.ID
	ev.VerifiedAt = &now
	return svc.repo.UpdateEvidence(ctx, ev)
}

func (svc *service) OpenEvidence(ctx context.Context, actor user.User, ev Evidence) (io.ReadCloser, error) {
	if ev.StudentID != actor.ID {
		if _, err := svc.teachableUnit(ctx, actor, ev.UnitID); err != nil {
			return nil, err
		}
	}
	rc, err := svc.blobs.Open(ctx, ev.StoragePath)
	if err != nil {
		return nil, errors.Wrap(err, "opening evidence file")
	}
	return rc, nil
}
