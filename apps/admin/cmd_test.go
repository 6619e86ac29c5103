package main

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/campaign"
	"github.com/trezcool/clubhouse/core/program"
	"github.com/trezcool/clubhouse/core/reminder"
	"github.com/trezcool/clubhouse/core/schedule"
	"github.com/trezcool/clubhouse/core/user"
	"github.com/trezcool/clubhouse/services/email"
	"github.com/trezcool/clubhouse/storage/database/dummy"
	"github.com/trezcool/clubhouse/tests"
)

var (
	db      *dummydb.DB
	usrRepo user.Repository
)

func setup(t *testing.T) *commandLine {
	t.Helper()
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidate()
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	db = dummydb.Open()
	usrRepo = dummydb.NewUserRepository(db)

	return &commandLine{
		validate:    validate,
		translator:  translator,
		usrSvc:      user.NewService(usrRepo),
		reminderSvc: reminder.NewService(dummydb.NewReminderRepository(db), mailSvc, logger, conf),
		campaignSvc: campaign.NewService(dummydb.NewCampaignRepository(db), mailSvc, logger, validate),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	t.Helper()
	for _, tt := range tests {
		tt := tt
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case err == nil:
				if tt.wantErr != nil || tt.wantErrStr != "" {
					t.Errorf("cli.run() error = nil, want an error")
				}
				if check != nil {
					check(t, tt)
				}
			case tt.wantErr != nil:
				if errors.Cause(err) != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
				}
			default:
				t.Errorf("cli.run() unexpected error = %v", err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	orig := migrateFunc
	t.Cleanup(func() { migrateFunc = orig })
	migrateFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	runCLITests(t, cli, tests, nil)
}

type passwordInput struct {
	pwd string
}

func mockPassword(t *testing.T, pwd *string) {
	t.Helper()
	orig := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = orig })
	readPasswordFunc = func(int) ([]byte, error) { return []byte(*pwd), nil }
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	var pwd string
	mockPassword(t, &pwd)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: passwordInput{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: passwordInput{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: passwordInput{pwd: "lmao"}},
	}
	for i := range tests {
		tt := tests[i]
		pwd = ""
		if in, ok := tt.extra.(passwordInput); ok {
			pwd = in.pwd
		}
		runCLITests(t, cli, tests[i:i+1], func(t *testing.T, tt cliTest) {
			refreshed, err := usrRepo.GetUserByID(context.Background(), usr.ID)
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(tt.extra.(passwordInput).pwd))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	testutil.CreateUser(t, usrRepo, "Taken", "taken_user", "taken@test.cd", "", nil, true)

	pwd := "Tr1cky-Pa55word"
	mockPassword(t, &pwd)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "name only", args: []string{"adduser", "-name", "Carl"}, wantErr: errHelp},
		{name: "username taken", args: []string{"adduser", "-name", "Carl", "-username", "taken_user"}, wantErrStr: "a user with this username already exists"},
		{name: "unknown role", args: []string{"adduser", "-name", "Carl", "-username", "carl_coach", "-role", "janitor:"},
			wantErrStr: "invalid roles"},
		{name: "coach", args: []string{"adduser", "-name", "Carl Coach", "-username", "carl_coach", "-email", "Carl@Test.cd", "-role", user.RoleCoach}},
	}
	runCLITests(t, cli, tests, nil)

	usr, err := usrRepo.GetUserByUsernameOrEmail(context.Background(), "carl@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "carl_coach", usr.Username)
	assert.Equal(t, []string{user.RoleCoach}, usr.Roles)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(pwd))
}

func seedProgram(t *testing.T) (parent user.User, team program.Team) {
	t.Helper()
	ctx := context.Background()
	prog := dummydb.NewProgramRepository(db)

	parent = testutil.CreateUser(t, usrRepo, "Pam Parent", "pam", "pam@test.cd", "", []string{user.RoleParent}, true)
	unpaid := testutil.CreateUser(t, usrRepo, "Una Unpaid", "una", "una@test.cd", "", []string{user.RoleParent}, true)

	school, err := prog.CreateSchool(ctx, program.School{ID: "school", Name: "Lincoln"})
	require.NoError(t, err)
	team, err = prog.CreateTeam(ctx, program.Team{ID: "team", SchoolID: school.ID, Name: "Tigers"})
	require.NoError(t, err)
	for i, p := range []user.User{parent, unpaid} {
		st, err := prog.CreateStudent(ctx, program.Student{ID: "kid" + strconv.Itoa(i), ParentID: p.ID, FirstName: "Kid", LastName: p.Name})
		require.NoError(t, err)
		_, err = prog.CreateEnrollment(ctx, program.Enrollment{ID: "e" + strconv.Itoa(i), StudentID: st.ID, TeamID: team.ID, IsActive: p.ID == parent.ID})
		require.NoError(t, err)
	}
	return parent, team
}

func Test_commandLine_remind(t *testing.T) {
	cli := setup(t)
	parent, team := seedProgram(t)

	orig := reminder.NowFunc
	t.Cleanup(func() { reminder.NowFunc = orig })
	reminder.NowFunc = func() time.Time { return time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC) }

	_, err := dummydb.NewScheduleRepository(db).CreateSession(context.Background(), schedule.Session{
		ID: "s1", TeamID: team.ID, StartDate: schedule.NewDate(2025, 9, 17), EndDate: schedule.NewDate(2025, 9, 17), DaysOfWeek: "Wednesday",
	})
	require.NoError(t, err)

	tests := []cliTest{
		{name: "no type", args: []string{"remind"}, wantErr: errHelp},
		{name: "unknown type", args: []string{"remind", "-type", "2d"}, wantErr: reminder.ErrUnknownType},
		{name: "dry run", args: []string{"remind", "-type", "7d", "-dry-run"}},
	}
	runCLITests(t, cli, tests, nil)
	assert.Empty(t, emailsvc.SentTo(parent.Email))

	runCLITests(t, cli, []cliTest{
		{name: "dispatch", args: []string{"remind", "-type", "7d"}},
		{name: "dispatch again", args: []string{"remind", "-type", "7d"}},
	}, nil)
	assert.Len(t, emailsvc.SentTo(parent.Email), 1)
	assert.Empty(t, emailsvc.SentTo("una@test.cd"))
}

func Test_commandLine_campaign(t *testing.T) {
	cli := setup(t)
	parent, _ := seedProgram(t)

	tests := []cliTest{
		{name: "missing flags", args: []string{"campaign", "-name", "fall"}, wantErr: errHelp},
		{name: "unknown template", args: []string{"campaign", "-name", "fall", "-template", "nope", "-subject", "Hi", "-audience", campaign.AudienceActiveParents},
			wantErr: campaign.ErrUnknownTemplate},
		{name: "unknown audience", args: []string{"campaign", "-name", "fall", "-template", "season_reminder", "-subject", "Hi", "-audience", "everyone"},
			wantErrStr: "audience must be one of [active-parents unpaid-parents subscribers]"},
		{name: "dry run", args: []string{"campaign", "-name", "fall", "-template", "season_reminder", "-subject", "Fall season", "-audience", campaign.AudienceActiveParents, "-dry-run"}},
	}
	runCLITests(t, cli, tests, nil)
	assert.Empty(t, emailsvc.SentMessages)

	runCLITests(t, cli, []cliTest{
		{name: "send", args: []string{"campaign", "-name", "fall", "-template", "season_reminder", "-subject", "Fall season", "-audience", campaign.AudienceActiveParents}},
		{name: "send again", args: []string{"campaign", "-name", "fall", "-template", "season_reminder", "-subject", "Fall season", "-audience", campaign.AudienceActiveParents}},
	}, nil)
	require.Len(t, emailsvc.SentMessages, 1)
	assert.Equal(t, parent.Email, emailsvc.SentMessages[0].To[0].Address)
}
