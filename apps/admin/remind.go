package main

import (
	"context"
	"fmt"

	"github.com/trezcool/clubhouse/core/reminder"
)

func (cli *commandLine) remind(ctx context.Context, typ string, dryRun bool) error {
	t, err := reminder.ParseType(typ)
	if err != nil {
		return err
	}

	if dryRun {
		pending, err := cli.reminderSvc.Pending(ctx, t)
		if err != nil {
			return err
		}
		for _, p := range pending {
			fmt.Printf("%s %s (%s): %d reminder(s)\n", p.Session.TeamName, p.Session.StartDate, p.Session.ID, len(p.Recipients))
		}
		return nil
	}

	summary, err := cli.reminderSvc.Dispatch(ctx, t)
	if err != nil {
		return err
	}
	fmt.Printf("%s reminders: %d sent, %d failed, %d skipped\n", t, summary.Sent, summary.Failed, summary.Skipped)
	return nil
}
