package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/clubhouse/core/campaign"
	"github.com/trezcool/clubhouse/core/reminder"
	"github.com/trezcool/clubhouse/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db          *sqlx.DB
	validate    *validator.Validate
	translator  ut.Translator
	usrSvc      user.ServiceInterface
	reminderSvc *reminder.Service
	campaignSvc *campaign.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...] - run a goose migration command (up, down, status, redo, ...)")
	fmt.Println("  adduser -name NAME -username USERNAME -email EMAIL [-role ROLE,...] - create a user; the password is prompted")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  remind -type 30d|7d|1d [-dry-run] - send the session reminders due now")
	fmt.Println("  campaign -name NAME -template TEMPLATE -subject SUBJECT -audience AUDIENCE [-dry-run] - send an email campaign")
}

// promptPassword reads a password without echoing it.
func promptPassword(label string) (string, error) {
	fmt.Print(label)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRoles := addUserCmd.String("role", user.RoleParent, "Comma separated roles: "+strings.Join(user.AllRoles, ", "))

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	remindCmd := flag.NewFlagSet("remind", flag.ExitOnError)
	remindType := remindCmd.String("type", "", "The reminder type: 30d, 7d or 1d.")
	remindDryRun := remindCmd.Bool("dry-run", false, "List the pending reminders without sending them.")

	campaignCmd := flag.NewFlagSet("campaign", flag.ExitOnError)
	campaignName := campaignCmd.String("name", "", "The campaign's unique name. Addresses that already received it are skipped.")
	campaignTemplate := campaignCmd.String("template", "", "The email template, without extension.")
	campaignSubject := campaignCmd.String("subject", "", "The email subject.")
	campaignAudience := campaignCmd.String("audience", "", "One of: "+strings.Join([]string{
		campaign.AudienceActiveParents, campaign.AudienceUnpaidParents, campaign.AudienceSubscribers,
	}, ", "))
	campaignDryRun := campaignCmd.Bool("dry-run", false, "Count the recipients without sending anything.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			fmt.Println("Usage: migrate COMMAND [ARGS...]")
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || (*addUserUname == "" && *addUserEmail == "") {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, user.NewUser{
			Name:            *addUserName,
			Username:        *addUserUname,
			Email:           *addUserEmail,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           splitRoles(*addUserRoles),
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordUname, pwd)

	case "remind":
		if err := remindCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *remindType == "" {
			remindCmd.Usage()
			return errHelp
		}
		return cli.remind(ctx, *remindType, *remindDryRun)

	case "campaign":
		if err := campaignCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *campaignName == "" || *campaignTemplate == "" || *campaignAudience == "" {
			campaignCmd.Usage()
			return errHelp
		}
		return cli.runCampaign(ctx, campaign.Job{
			Name:     *campaignName,
			Template: *campaignTemplate,
			Subject:  *campaignSubject,
			Audience: *campaignAudience,
			DryRun:   *campaignDryRun,
		})

	default:
		cli.printUsage()
		return errHelp
	}
}

func splitRoles(val string) []string {
	roles := make([]string, 0)
	for _, r := range strings.Split(val, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// validationError flattens validator errors into one readable error.
func (cli *commandLine) validationError(err error) error {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return err
	}
	msgs := make([]string, 0, len(vErrs))
	for _, vErr := range vErrs {
		msgs = append(msgs, vErr.Translate(cli.translator))
	}
	return errors.New(strings.Join(msgs, "; "))
}
