package main

import (
	"context"
)

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	_, err := cli.usrSvc.ResetPassword(ctx, uname, pwd)
	return err
}
