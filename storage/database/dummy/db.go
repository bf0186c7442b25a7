package dummydb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/assessment"
	"github.com/teachhub/backend/core/finance"
	"github.com/teachhub/backend/core/lessonplan"
	"github.com/teachhub/backend/core/school"
	"github.com/teachhub/backend/core/timetable"
	"github.com/teachhub/backend/core/user"
)

type markKey struct {
	assessmentID string
	studentID    string
}

// DB is an in-memory database. Every repository shares its lock, so that
// deletes can check references across tables.
type DB struct {
	sync.RWMutex

	users         map[string]*user.User
	classes       map[string]*school.Class
	units         map[string]*school.Unit
	enrolments    map[string]*school.Enrolment
	sessions      map[string]*timetable.Session
	lessonPlans   map[string]*lessonplan.LessonPlan
	assessments   map[string]*assessment.Assessment
	marks         map[markKey]*assessment.Mark
	evidence      map[string]*assessment.Evidence
	feeStructures map[string]*finance.FeeStructure
	charges       map[string]*finance.Charge
	payments      map[string]*finance.Payment
}

func Open() (*DB, error) {
	db := &DB{}
	db.Flush()
	return db, nil
}

// Flush empties every table.
func (db *DB) Flush() {
	db.Lock()
	defer db.Unlock()

	db.users = make(map[string]*user.User)
	db.classes = make(map[string]*school.Class)
	db.units = make(map[string]*school.Unit)
	db.enrolments = make(map[string]*school.Enrolment)
	db.sessions = make(map[string]*timetable.Session)
	db.lessonPlans = make(map[string]*lessonplan.LessonPlan)
	db.assessments = make(map[string]*assessment.Assessment)
	db.marks = make(map[markKey]*assessment.Mark)
	db.evidence = make(map[string]*assessment.Evidence)
	db.feeStructures = make(map[string]*finance.FeeStructure)
	db.charges = make(map[string]*finance.Charge)
	db.payments = make(map[string]*finance.Payment)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// orderBy sorts slice by ordering, falling back to fallback when every field is equal.
// cmp compares field of records i & j.
func orderBy(slice interface{}, ordering []core.DBOrdering, cmp func(field string, i, j int) int, fallback func(i, j int) bool) {
	sort.SliceStable(slice, func(i, j int) bool {
		for _, ord := range ordering {
			c := cmp(ord.Field, i, j)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return fallback(i, j)
	})
}
