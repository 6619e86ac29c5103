package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	. "github.com/trezcool/clubhouse/apps/api/echo"
	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/messaging"
	"github.com/trezcool/clubhouse/core/newsletter"
	"github.com/trezcool/clubhouse/core/program"
	"github.com/trezcool/clubhouse/core/reminder"
	"github.com/trezcool/clubhouse/core/schedule"
	"github.com/trezcool/clubhouse/core/user"
	"github.com/trezcool/clubhouse/services/email"
	"github.com/trezcool/clubhouse/services/events"
	"github.com/trezcool/clubhouse/storage/database/dummy"
	"github.com/trezcool/clubhouse/storage/kv"
	"github.com/trezcool/clubhouse/tests"
)

const testPassword = "Tr1cky-Pa55word"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// fixture is a small program: one school, one team coached by coach, and one actively enrolled child of parent.
type fixture struct {
	app     *Server
	conf    *core.Config
	db      *dummydb.DB
	usrRepo user.Repository
	bus     *events.MemoryBus

	admin, coach, parent, stranger user.User
	school                         program.School
	team                           program.Team
	student                        program.Student
	enrollment                     program.Enrollment
}

func setup(t *testing.T, userSvc ...user.ServiceInterface) *fixture {
	t.Helper()
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidate()
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()

	db := dummydb.Open()
	f := &fixture{conf: conf, db: db, usrRepo: dummydb.NewUserRepository(db), bus: events.NewMemoryBus()}
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	var usrSvc user.ServiceInterface = user.NewService(f.usrRepo)
	if len(userSvc) > 0 {
		usrSvc = userSvc[0]
	}
	progSvc := program.NewService(dummydb.NewProgramRepository(db))

	f.app = NewServer(conf, logger, &Deps{
		UserSvc:       usrSvc,
		ProgramSvc:    progSvc,
		ScheduleSvc:   schedule.NewService(dummydb.NewScheduleRepository(db), mailSvc, logger, conf),
		ReminderSvc:   reminder.NewService(dummydb.NewReminderRepository(db), mailSvc, logger, conf),
		MessagingSvc:  messaging.NewService(dummydb.NewMessagingRepository(db), f.bus, logger),
		NewsletterSvc: newsletter.NewService(dummydb.NewNewsletterRepository(db), kv.NewMemoryStore(), mailSvc, logger, validate, conf),
		Validate:      validate,
		Translator:    translator,
	})

	f.admin = testutil.CreateUser(t, f.usrRepo, "Ada Admin", "ada", "ada@test.cd", testPassword, []string{user.RoleAdminOwner}, true)
	f.coach = testutil.CreateUser(t, f.usrRepo, "Carl Coach", "carl", "carl@test.cd", testPassword, []string{user.RoleCoach}, true)
	f.parent = testutil.CreateUser(t, f.usrRepo, "Pam Parent", "pam", "pam@test.cd", testPassword, []string{user.RoleParent}, true)
	f.stranger = testutil.CreateUser(t, f.usrRepo, "Sam Stranger", "sam", "sam@test.cd", testPassword, []string{user.RoleParent}, true)

	ctx := context.Background()
	progRepo := dummydb.NewProgramRepository(db)
	now := time.Now().UTC()
	var err error
	f.school, err = progRepo.CreateSchool(ctx, program.School{ID: uuid.NewString(), Name: "Lincoln", CreatedAt: now})
	must(t, err)
	f.team, err = progRepo.CreateTeam(ctx, program.Team{ID: uuid.NewString(), SchoolID: f.school.ID, CoachID: f.coach.ID, Name: "Tigers", CreatedAt: now})
	must(t, err)
	f.student, err = progRepo.CreateStudent(ctx, program.Student{ID: uuid.NewString(), ParentID: f.parent.ID, FirstName: "Timmy", LastName: "Parent", CreatedAt: now})
	must(t, err)
	f.enrollment, err = progRepo.CreateEnrollment(ctx, program.Enrollment{ID: uuid.NewString(), StudentID: f.student.ID, TeamID: f.team.ID, IsActive: true, CreatedAt: now, UpdatedAt: now})
	must(t, err)
	return f
}

func (f *fixture) createSession(t *testing.T, s schedule.Session) schedule.Session {
	t.Helper()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.TeamID = f.team.ID
	s, err := dummydb.NewScheduleRepository(f.db).CreateSession(context.Background(), s)
	must(t, err)
	return s
}

func (f *fixture) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(f.conf, GetUserClaims(f.conf, usr))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (f *fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, f *fixture, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
