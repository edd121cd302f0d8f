package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/user"
)

// addUser updates or creates an active user.User.
func (cli *commandLine) addUser(ctx context.Context, name, uname, email, pwd string, isAdmin bool) (user.User, error) {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if errors.Cause(err) == user.ErrNotFound {
		usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	}
	switch {
	case errors.Cause(err) == user.ErrNotFound:
		now := time.Now().UTC()
		usr = user.User{Roles: user.UserRoles, CreatedAt: now}
	case err != nil:
		return user.User{}, errors.Wrap(err, "looking up user")
	}

	usr.Username = uname
	usr.Email = email
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	if isAdmin {
		usr.Roles = []string{user.RoleAdmin}
	}
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "setting password")
	}
	return cli.usrRepo.UpdateOrCreateUser(ctx, usr)
}
