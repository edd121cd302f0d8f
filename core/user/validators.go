package user

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"sort"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/swanstudios/studio/core"
	appfs "github.com/swanstudios/studio/fs"
)

var (
	allRolesTag  = "allroles"
	allRolesText = "invalid roles"

	usernameOrEmailTag  = "username_or_email"
	usernameOrEmailText = "one of username or email is required"

	pwdMinLen          = 8
	pwdMaxSim          = .7
	commonPasswords    []string
	commonPasswordsLoc = "assets/common-passwords.txt.gz"

	// password policy texts
	pwdMinLenText     = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)
	pwdNoSpaceText    = "password must not contain whitespace"
	pwdNotAllNumText  = "password cannot be entirely numeric"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	pwdAttrSimText    = "password cannot be similar to user attributes"
	pwdNoCommonText   = "password is too common"
)

// pwdRule is one rule of the password policy. Rules are checked in order, the first failure is reported.
type pwdRule struct {
	tag   string
	text  string
	fails func(pwd string, attrs []string) bool
}

var pwdPolicy = []pwdRule{
	{tag: "pwdminlen", text: pwdMinLenText, fails: func(pwd string, _ []string) bool {
		return len(pwd) < pwdMinLen
	}},
	{tag: "pwdnospace", text: pwdNoSpaceText, fails: func(pwd string, _ []string) bool {
		return strings.IndexFunc(pwd, unicode.IsSpace) >= 0
	}},
	{tag: "pwdnotallnum", text: pwdNotAllNumText, fails: func(pwd string, _ []string) bool {
		return strings.IndexFunc(pwd, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
	}},
	{tag: "pwdcplx", text: pwdComplexityText, fails: func(pwd string, _ []string) bool {
		return !(strings.IndexFunc(pwd, unicode.IsUpper) >= 0 &&
			strings.IndexFunc(pwd, unicode.IsLower) >= 0 &&
			strings.IndexFunc(pwd, unicode.IsDigit) >= 0 &&
			strings.IndexFunc(pwd, isSpecial) >= 0)
	}},
	{tag: "pwdtoosim", text: pwdAttrSimText, fails: func(pwd string, attrs []string) bool {
		lpwd := strings.Split(strings.ToLower(pwd), "")
		for _, attr := range attrs {
			if attr == "" {
				continue
			}
			if difflib.NewMatcher(lpwd, strings.Split(strings.ToLower(attr), "")).QuickRatio() >= pwdMaxSim {
				return true
			}
		}
		return false
	}},
	{tag: "pwdnocommon", text: pwdNoCommonText, fails: func(pwd string, _ []string) bool {
		lpwd := strings.ToLower(pwd)
		i := sort.SearchStrings(commonPasswords, lpwd)
		return i < len(commonPasswords) && commonPasswords[i] == lpwd
	}},
}

func isSpecial(r rune) bool {
	return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}

// InitValidators registers the user validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(validate, translator, allRolesTag, allRolesText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateUser{}, ResetUserPassword{})
	core.RegisterCustomTranslation(validate, translator, usernameOrEmailTag, usernameOrEmailText)
	for _, rule := range pwdPolicy {
		core.RegisterCustomTranslation(validate, translator, rule.tag, rule.text)
	}
}

// LoadCommonPasswords loads the list of common passwords rejected by the password policy.
func LoadCommonPasswords(logger core.Logger) {
	pwds, err := readCommonPasswords()
	if err != nil {
		logger.Error("loading common passwords", err)
		return
	}
	commonPasswords = pwds
}

func readCommonPasswords() ([]string, error) {
	file, err := appfs.FS.Open(commonPasswordsLoc)
	if err != nil {
		return nil, errors.Wrap(err, "opening common passwords")
	}
	defer func() { _ = file.Close() }()

	gzRdr, err := gzip.NewReader(file)
	if err != nil {
		return nil, errors.Wrap(err, "reading common passwords")
	}
	defer func() { _ = gzRdr.Close() }()

	pwds := make([]string, 0, 256)
	scanner := bufio.NewScanner(gzRdr)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			pwds = append(pwds, strings.ToLower(pwd))
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning common passwords")
	}
	sort.Strings(pwds)
	return pwds, nil
}

// Custom Validators

// allRolesValidation checks that provided user roles are all in AllRoles
func allRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, role := range roles {
		if RolePriority(role) == 0 {
			return false
		}
	}
	return true
}

// userStructValidation does struct level validation on NewUser, UpdateUser and ResetUserPassword structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		validateUsernameAndEmail(usr, sl)
		validatePassword(usr.Password, sl, usr.Name, usr.Username, usr.Email)
	case UpdateUser:
		if usr.Password != "" {
			validatePassword(usr.Password, sl, usr.Name, usr.Username, usr.Email)
		}
	case ResetUserPassword:
		validatePassword(usr.Password, sl)
	}
}

// validateUsernameAndEmail checks that one of Username or Email is provided
func validateUsernameAndEmail(nu NewUser, sl validator.StructLevel) {
	if len(nu.Username) == 0 && len(nu.Email) == 0 {
		sl.ReportError(nu.Username, "username", "Username", usernameOrEmailTag, "")
		sl.ReportError(nu.Email, "email", "Email", usernameOrEmailTag, "")
	}
}

// validatePassword reports the first rule of pwdPolicy that pwd breaks.
// attrs are the user's name, username & email.
func validatePassword(pwd string, sl validator.StructLevel, attrs ...string) {
	for _, rule := range pwdPolicy {
		if rule.fails(pwd, attrs) {
			sl.ReportError(pwd, "password", "Password", rule.tag, "")
			return
		}
	}
}
