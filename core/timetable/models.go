package timetable

import (
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/teachhub/backend/core"
)

// Clash kinds, also the resource kinds accepted by FreeSlots.
const (
	KindClass   = "class"
	KindRoom    = "room"
	KindTrainer = "trainer"
)

var (
	Days     = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
	dayIndex = func() map[string]int {
		idx := make(map[string]int, len(Days))
		for i, d := range Days {
			idx[d] = i
		}
		return idx
	}()

	weekdayTag  = "weekday"
	weekdayText = "must be a day of the week (monday to sunday)"

	resourceKindTag  = "resource_kind"
	resourceKindText = "must be one of class, room or trainer"
)

// InitValidators registers the timetable validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, weekdayTag, weekdayText, Days...)
	core.RegisterOneOf(validate, translator, resourceKindTag, resourceKindText, KindClass, KindRoom, KindTrainer)
	validate.RegisterStructValidation(intervalStructValidation, NewSession{}, UpdateSession{}, FreeSlotQuery{})
}

// Session is a weekly recurring lesson of a unit.
// Start and End are HH:MM; the interval is half-open [Start, End).
type Session struct {
	ID        string    `json:"id"`
	Term      string    `json:"term"`
	ClassID   string    `json:"class_id"`
	UnitID    string    `json:"unit_id"`
	TrainerID string    `json:"trainer_id"`
	Room      string    `json:"room"`
	Day       string    `json:"day"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s Session) startMin() int { return minutes(s.Start) }
func (s Session) endMin() int   { return minutes(s.End) }

// Duration is the length of the session.
func (s Session) Duration() time.Duration {
	return time.Duration(s.endMin()-s.startMin()) * time.Minute
}

func (s Session) resource(kind string) string {
	switch kind {
	case KindClass:
		return s.ClassID
	case KindRoom:
		return s.Room
	case KindTrainer:
		return s.TrainerID
	}
	return ""
}

func (s Session) String() string {
	return fmt.Sprintf("%s %s-%s", s.Day, s.Start, s.End)
}

// Clash is a pair of sessions sharing a resource at overlapping times.
type Clash struct {
	Kind     string  `json:"kind"`
	Resource string  `json:"resource"`
	Day      string  `json:"day"`
	Start    string  `json:"start"` // overlap window
	End      string  `json:"end"`
	First    Session `json:"first"`
	Second   Session `json:"second"`
}

// Slot is a free interval.
type Slot struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// TrainerLoad is the weekly teaching load of a trainer.
type TrainerLoad struct {
	TrainerID string  `json:"trainer_id"`
	Sessions  int     `json:"sessions"`
	Hours     float64 `json:"hours"`
}

type NewSession struct {
	Term      string `json:"term" validate:"required,max=30"`
	UnitID    string `json:"unit_id" validate:"required,uuid"`
	TrainerID string `json:"trainer_id" validate:"omitempty,uuid"` // defaults to the unit trainer
	Room      string `json:"room" validate:"max=50"`
	Day       string `json:"day" validate:"required,weekday"`
	Start     string `json:"start" validate:"required,hhmm"`
	End       string `json:"end" validate:"required,hhmm"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Term = core.CleanString(ns.Term)
	ns.UnitID = core.CleanString(ns.UnitID)
	ns.TrainerID = core.CleanString(ns.TrainerID)
	ns.Room = core.CleanString(ns.Room)
	ns.Day = core.CleanString(ns.Day, true /* lower */)
	ns.Start = core.CleanString(ns.Start)
	ns.End = core.CleanString(ns.End)
	return validate.Struct(ns)
}

type UpdateSession struct {
	TrainerID string  `json:"trainer_id" validate:"omitempty,uuid"`
	Room      *string `json:"room" validate:"omitempty,max=50"`
	Day       string  `json:"day" validate:"omitempty,weekday"`
	Start     string  `json:"start" validate:"omitempty,hhmm"`
	End       string  `json:"end" validate:"omitempty,hhmm"`
}

func (us *UpdateSession) Validate(orig Session, validate *validator.Validate) error {
	if id := core.CleanString(us.TrainerID); id != "" {
		us.TrainerID = id
	} else {
		us.TrainerID = orig.TrainerID
	}
	if us.Room != nil {
		room := core.CleanString(*us.Room)
		us.Room = &room
	}
	if day := core.CleanString(us.Day, true /* lower */); day != "" {
		us.Day = day
	} else {
		us.Day = orig.Day
	}
	if start := core.CleanString(us.Start); start != "" {
		us.Start = start
	} else {
		us.Start = orig.Start
	}
	if end := core.CleanString(us.End); end != "" {
		us.End = end
	} else {
		us.End = orig.End
	}
	return validate.Struct(us)
}

type QueryFilter struct {
	Term      string `query:"term"`
	ClassID   string `query:"class"`
	UnitID    string `query:"unit"`
	TrainerID string `query:"trainer"`
	Room      string `query:"room"`
	Day       string `query:"day"`
	ClassIDs  []string
}

func (qf *QueryFilter) Clean() {
	qf.Term = core.CleanString(qf.Term)
	qf.ClassID = core.CleanString(qf.ClassID)
	qf.UnitID = core.CleanString(qf.UnitID)
	qf.TrainerID = core.CleanString(qf.TrainerID)
	qf.Room = core.CleanString(qf.Room)
	qf.Day = core.CleanString(qf.Day, true /* lower */)
}

// FreeSlotQuery asks for the free intervals of a resource on a day, inside [From, To).
type FreeSlotQuery struct {
	Term      string `query:"term" validate:"required"`
	Kind      string `query:"kind" validate:"required,resource_kind"`
	ID        string `query:"id" validate:"required"`
	Day       string `query:"day" validate:"required,weekday"`
	Start     string `query:"from" validate:"required,hhmm"`
	End       string `query:"to" validate:"required,hhmm"`
	MinLength int    `query:"min_length" validate:"min=0,max=1440"` // minutes
}

func (fq *FreeSlotQuery) Validate(validate *validator.Validate) error {
	fq.Term = core.CleanString(fq.Term)
	fq.Kind = core.CleanString(fq.Kind, true /* lower */)
	fq.ID = core.CleanString(fq.ID)
	fq.Day = core.CleanString(fq.Day, true /* lower */)
	if fq.Start == "" {
		fq.Start = "07:00"
	}
	if fq.End == "" {
		fq.End = "18:00"
	}
	return validate.Struct(fq)
}

// intervalStructValidation checks that Start is before End.
func intervalStructValidation(sl validator.StructLevel) {
	var start, end string
	switch v := sl.Current().Interface().(type) {
	case NewSession:
		start, end = v.Start, v.End
	case UpdateSession:
		start, end = v.Start, v.End
	case FreeSlotQuery:
		start, end = v.Start, v.End
	}
	if start == "" || end == "" || !validHHMM(start) || !validHHMM(end) {
		return
	}
	if minutes(start) >= minutes(end) {
		sl.ReportError(end, "end", "End", "gtfield", "start")
	}
}
