package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, copyUser(*u))
	}
	return users
}

func copyUser(u user.User) user.User {
	u.Roles = append([]string(nil), u.Roles...)
	return u
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.users {
		if excluded[usr.ID] {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	usr = copyUser(usr)
	repo.db.users[usr.ID] = &usr
	return copyUser(usr), nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0)
	for _, u := range repo.query() {
		if filter != nil && !matchUser(u, filter) {
			continue
		}
		users = append(users, u)
	}

	orderBy(users, ordering, func(field string, i, j int) int {
		a, b := users[i], users[j]
		switch field {
		case "name":
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case "username":
			return strings.Compare(a.Username, b.Username)
		case "email":
			return strings.Compare(a.Email, b.Email)
		case "is_active":
			return compareInts(boolInt(a.IsActive), boolInt(b.IsActive))
		case "created_at":
			return compareTimes(a.CreatedAt, b.CreatedAt)
		case "updated_at":
			return compareTimes(a.UpdatedAt, b.UpdatedAt)
		case "last_login":
			return compareTimes(a.LastLogin, b.LastLogin)
		}
		return 0
	}, func(i, j int) bool {
		if c := compareTimes(users[i].CreatedAt, users[j].CreatedAt); c != 0 {
			return c < 0
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func matchUser(u user.User, filter *user.QueryFilter) bool {
	// search keyword matching any Name, Username or Email ?
	if filter.Search != "" &&
		!containsFold(u.Name, filter.Search) &&
		!containsFold(u.Username, filter.Search) &&
		!containsFold(u.Email, filter.Search) {
		return false
	}
	// any of the specified roles
	if len(filter.Roles) > 0 {
		var ok bool
		for _, r := range filter.Roles {
			if u.RoleStartsWith(r) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if filter.IsActive != nil && u.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom.UTC()) {
		return false
	}
	if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo.UTC()) {
		return false
	}
	return true
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return copyUser(*usr), nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return copyUser(*usr), nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return copyUser(*usr), nil
			}
		case filter.UsernameOrEmail != "":
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return copyUser(*usr), nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if usr, ok := repo.db.users[id]; ok {
			users = append(users, copyUser(*usr))
		}
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	usr = copyUser(usr)
	repo.db.users[usr.ID] = &usr
	return copyUser(usr), nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		if repo.db.userReferenced(id) {
			return 0, core.ErrReferenced
		}
	}
	var n int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; ok {
			delete(repo.db.users, id)
			n++
		}
	}
	return n, nil
}

// userReferenced reports whether any record points to user id. Caller holds the lock.
func (db *DB) userReferenced(id string) bool {
	for _, c := range db.classes {
		if c.TrainerID == id {
			return true
		}
	}
	for _, u := range db.units {
		if u.TrainerID == id {
			return true
		}
	}
	for _, e := range db.enrolments {
		if e.StudentID == id {
			return true
		}
	}
	for _, s := range db.sessions {
		if s.TrainerID == id {
			return true
		}
	}
	for _, lp := range db.lessonPlans {
		if lp.TrainerID == id || lp.ReviewerID == id {
			return true
		}
	}
	for k, m := range db.marks {
		if k.studentID == id || m.RecordedBy == id {
			return true
		}
	}
	for _, ev := range db.evidence {
		if ev.StudentID == id || ev.VerifiedBy == id {
			return true
		}
	}
	for _, c := range db.charges {
		if c.StudentID == id {
			return true
		}
	}
	for _, p := range db.payments {
		if p.StudentID == id || p.RecordedBy == id {
			return true
		}
	}
	return false
}
