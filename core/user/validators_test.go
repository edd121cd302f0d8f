package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swanstudios/studio/core"
)

func newValidate(t *testing.T) (*validator.Validate, func(error) map[string]string) {
	t.Helper()
	pwds, err := readCommonPasswords()
	require.NoError(t, err)
	commonPasswords = pwds

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	fieldErrs := func(err error) map[string]string {
		res := make(map[string]string)
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			for _, vErr := range vErrs {
				res[vErr.Field()] = vErr.Translate(translator)
			}
		}
		return res
	}
	return validate, fieldErrs
}

func TestValidatePassword(t *testing.T) {
	validate, fieldErrs := newValidate(t)

	tests := []struct {
		name    string
		nu      NewUser
		wantErr string
	}{
		{name: "min len", nu: NewUser{Name: "Bob", Username: "bobby_b", Password: "Ab1!", PasswordConfirm: "Ab1!"}, wantErr: pwdMinLenText},
		{name: "whitespace", nu: NewUser{Name: "Bob", Username: "bobby_b", Password: "Ab1! cdefg", PasswordConfirm: "Ab1! cdefg"}, wantErr: pwdNoSpaceText},
		{name: "all numeric", nu: NewUser{Name: "Bob", Username: "bobby_b", Password: "1234567890", PasswordConfirm: "1234567890"}, wantErr: pwdNotAllNumText},
		{name: "complexity", nu: NewUser{Name: "Bob", Username: "bobby_b", Password: "abcdefgh1", PasswordConfirm: "abcdefgh1"}, wantErr: pwdComplexityText},
		{name: "similar to username", nu: NewUser{Name: "Bob", Username: "swanlake99", Password: "Swanlake99!", PasswordConfirm: "Swanlake99!"}, wantErr: pwdAttrSimText},
		{name: "common", nu: NewUser{Name: "Bob", Username: "bobby_b", Password: "P@$$w0rd", PasswordConfirm: "P@$$w0rd"}, wantErr: pwdNoCommonText},
		{name: "valid", nu: NewUser{Name: "Bob", Username: "bobby_b", Password: "Tr41n-H4rd!", PasswordConfirm: "Tr41n-H4rd!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.nu)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantErr, fieldErrs(err)["password"])
		})
	}
}

func TestValidateRolesAndIdentity(t *testing.T) {
	validate, fieldErrs := newValidate(t)

	err := validate.Struct(NewUser{Name: "Bob", Password: "Tr41n-H4rd!", PasswordConfirm: "Tr41n-H4rd!"})
	errs := fieldErrs(err)
	assert.Equal(t, usernameOrEmailText, errs["username"])
	assert.Equal(t, usernameOrEmailText, errs["email"])

	err = validate.Struct(NewUser{Name: "Bob", Email: "bob@test.cd", Password: "Tr41n-H4rd!", PasswordConfirm: "Tr41n-H4rd!", Roles: []string{"lol:"}})
	assert.Equal(t, allRolesText, fieldErrs(err)["roles"])

	err = validate.Struct(NewUser{Name: "Bob", Email: "bob@test.cd", Phone: "0812345", Password: "Tr41n-H4rd!", PasswordConfirm: "Tr41n-H4rd!"})
	assert.Contains(t, fieldErrs(err)["phone"], "international format")

	err = validate.Struct(NewUser{Name: "Bob", Email: "bob@test.cd", Phone: "+15555550100", Password: "Tr41n-H4rd!", PasswordConfirm: "Tr41n-H4rd!", Roles: []string{RoleTrainer}})
	assert.NoError(t, err)
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, 0, MaxRolePriority(nil))
	assert.Equal(t, 1, MaxRolePriority([]string{RoleUser}))
	assert.Equal(t, 11, MaxRolePriority([]string{RoleClient, RoleTrainer}))
	assert.Equal(t, 30, MaxRolePriority(AllRoles))

	usr := User{Roles: []string{RoleAdminOwner}}
	assert.True(t, usr.IsAdmin())
	assert.True(t, usr.IsStaff())
	assert.False(t, usr.IsTrainer())
	usr = User{Roles: []string{RoleTrainer}}
	assert.True(t, usr.IsStaff())
	assert.False(t, usr.IsAdmin())
}

func TestUser_RolesWith(t *testing.T) {
	usr := User{Roles: []string{RoleUser}}
	assert.Equal(t, []string{RoleClient}, usr.RolesWith(RoleClient))

	usr = User{Roles: []string{RoleTrainer, RoleClient}}
	assert.Equal(t, []string{RoleTrainer, RoleClient}, usr.RolesWith(RoleClient))

	assert.Zero(t, RolePriority("lol:"))
	assert.Len(t, AllRoles, len(Roles))
}
