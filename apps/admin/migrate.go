package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// migrate runs a goose command against the embedded migrations, e.g: migrate up-to 2
func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errors.New("no database")
	}
	command, cmdArgs := args[0], args[1:]

	extras := map[string]interface{}{"command": command}
	if len(cmdArgs) > 0 {
		extras["args"] = strings.Join(cmdArgs, " ")
	}
	cli.logger.Info("running migration command", extras)

	if err := migrateFunc(cli.db, command, cmdArgs...); err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout(), "migrate %s: done\n", command)
	return nil
}
