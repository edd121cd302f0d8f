package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/user"
)

// resetPassword sets the password of the user matching uname (username or email).
// Deactivated accounts stay deactivated unless activate is set.
func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string, activate bool) error {
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	if activate {
		usr.IsActive = true
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}

	status := "active"
	if !usr.IsActive {
		status = "deactivated"
	}
	fmt.Fprintf(cli.stdout(), "password of %s (%s) updated, account %s\n", usr.Username, usr.Email, status)
	return nil
}
