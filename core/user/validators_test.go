package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teachhub/backend/core"
)

func newTestValidator(t *testing.T) *validator.Validate {
	t.Helper()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	pwds, err := readCommonPasswords(core.Getwd() + "/assets/common-passwords.txt.gz")
	require.NoError(t, err)
	commonPasswordsMu.Lock()
	commonPasswords = pwds
	commonPasswordsMu.Unlock()
	return validate
}

func TestNewUserValidation(t *testing.T) {
	validate := newTestValidator(t)

	valid := func() NewUser {
		return NewUser{
			Name:            "Jane Wanjiru",
			Username:        "jwanjiru",
			Email:           "jane@school.test",
			Password:        "Tr41n!ngDay",
			PasswordConfirm: "Tr41n!ngDay",
			Roles:           []string{RoleTrainer},
		}
	}

	tests := []struct {
		name    string
		mutate  func(nu *NewUser)
		wantTag string
	}{
		{name: "valid", mutate: func(nu *NewUser) {}},
		{name: "missing username and email", mutate: func(nu *NewUser) { nu.Username, nu.Email = "", "" }, wantTag: usernameOrEmailTag},
		{name: "unknown role", mutate: func(nu *NewUser) { nu.Roles = []string{"janitor:"} }, wantTag: allRolesTag},
		{name: "short password", mutate: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Ab1!", "Ab1!" }, wantTag: pwdMinLenTag},
		{name: "whitespace", mutate: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Ab1! cdefg", "Ab1! cdefg" }, wantTag: pwdNoSpaceTag},
		{name: "all numeric", mutate: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "1234509876", "1234509876" }, wantTag: pwdNotAllNumTag},
		{name: "not complex", mutate: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "abcdefgh1", "abcdefgh1" }, wantTag: pwdComplexityTag},
		{name: "similar to username", mutate: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Jwanjiru1!", "Jwanjiru1!" }, wantTag: pwdAttrSimTag},
		{name: "common", mutate: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "P@ssw0rd", "P@ssw0rd" }, wantTag: pwdNoCommonTag},
		{name: "confirm mismatch", mutate: func(nu *NewUser) { nu.PasswordConfirm = "other" }, wantTag: "eqfield"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid()
			tt.mutate(&nu)
			err := validate.Struct(nu)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok)
			var tags []string
			for _, fe := range vErrs {
				tags = append(tags, fe.Tag())
			}
			assert.Contains(t, tags, tt.wantTag)
		})
	}
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, 0, MaxRolePriority(nil))
	assert.Equal(t, 11, MaxRolePriority([]string{RoleStudent, RoleTrainer}))
	assert.Equal(t, 30, MaxRolePriority([]string{RoleAdminBursar, RoleAdminOwner}))
	assert.Greater(t, RolePriority(RoleAdminBursar), RolePriority(RoleAdmin))
}

func TestUserRoles(t *testing.T) {
	bursar := User{Roles: []string{RoleAdminBursar}}
	assert.True(t, bursar.IsAdmin())
	assert.True(t, bursar.CanManageFinance())
	assert.False(t, bursar.IsTrainer())

	admin := User{Roles: []string{RoleAdmin}}
	assert.True(t, admin.IsAdmin())
	assert.False(t, admin.CanManageFinance())

	trainer := User{Roles: []string{RoleTrainer, RoleStudent}}
	assert.True(t, trainer.IsTrainer())
	assert.True(t, trainer.IsStudent())
	assert.False(t, trainer.IsAdmin())
}
