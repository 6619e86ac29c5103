package main

import (
	"context"
	"fmt"

	"github.com/trezcool/clubhouse/core/campaign"
)

func (cli *commandLine) runCampaign(ctx context.Context, job campaign.Job) error {
	summary, err := cli.campaignSvc.Run(ctx, job)
	if err != nil {
		return cli.validationError(err)
	}
	verb := "sent"
	if job.DryRun {
		verb = "would be sent"
	}
	fmt.Printf("campaign %s: %d %s, %d failed, %d skipped\n", job.Name, summary.Sent, verb, summary.Failed, summary.Skipped)
	return nil
}
