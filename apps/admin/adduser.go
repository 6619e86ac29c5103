package main

import (
	"context"
	"fmt"

	"github.com/trezcool/clubhouse/core/user"
)

func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return cli.validationError(err)
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Printf("user %s created (id %s)\n", usr.Name, usr.ID)
	return nil
}
