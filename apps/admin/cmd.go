package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/gamification"
	"github.com/swanstudios/studio/core/store"
	"github.com/swanstudios/studio/core/user"
	"github.com/swanstudios/studio/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword        // mockable
	migrateFunc      = database.RunMigrations // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	usrRepo  user.Repository
	gamSvc   gamification.Service
	storeSvc store.Service
	logger   core.Logger
	out      io.Writer
}

func (cli *commandLine) stdout() io.Writer {
	if cli.out != nil {
		return cli.out
	}
	return os.Stdout
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.stdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.stdout())
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "SwanStudios administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.stdout())
	root.SetErr(cli.stdout())

	root.AddCommand(
		&cobra.Command{
			Use:                "migrate COMMAND [ARGS...]",
			Short:              "Run a goose migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)",
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					_ = cmd.Help()
					return errHelp
				}
				return cli.migrate(args)
			},
		},
		cli.resetPasswordCmd(),
		cli.addUserCmd(),
		&cobra.Command{
			Use:   "seed",
			Short: "Create the default gamification settings, catalog & storefront items",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return cli.seed(cmd.Context())
			},
		},
	)
	return root
}

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var (
		uname    string
		activate bool
	)
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if uname == "" {
				_ = cmd.Help()
				return errHelp
			}
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Help()
				return errHelp
			}
			return cli.resetPassword(cmd.Context(), uname, pwd, activate)
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "The user's username or email")
	cmd.Flags().BoolVar(&activate, "activate", false, "Also reactivate a deactivated account")
	return cmd
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		name, uname, email string
		isAdmin           bool
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update a user. The password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if uname == "" || email == "" {
				_ = cmd.Help()
				return errHelp
			}
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Help()
				return errHelp
			}
			usr, err := cli.addUser(cmd.Context(), name, uname, email, pwd, isAdmin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.stdout(), "user %s (%s) saved\n", usr.Username, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "The user's full name")
	cmd.Flags().StringVar(&uname, "username", "", "The user's username")
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "Grant the admin role")
	return cmd
}

// run executes the command line args, without the program name.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}
