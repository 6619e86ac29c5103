package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/campaign"
	"github.com/trezcool/clubhouse/core/reminder"
	"github.com/trezcool/clubhouse/core/user"
	"github.com/trezcool/clubhouse/services/email"
	"github.com/trezcool/clubhouse/services/logger"
	"github.com/trezcool/clubhouse/storage/database"
	"github.com/trezcool/clubhouse/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	defer logger.Close()

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)
	core.ParseEmailTemplates(conf, logger)

	// set up DB
	if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer db.Close()

	mailSvc := emailsvc.New(conf, logger)

	// start CLI
	cli := commandLine{
		db:          db,
		validate:    validate,
		translator:  translator,
		usrSvc:      user.NewService(sqlxrepos.NewUserRepository(db)),
		reminderSvc: reminder.NewService(sqlxrepos.NewReminderRepository(db), mailSvc, logger, conf),
		campaignSvc: campaign.NewService(sqlxrepos.NewCampaignRepository(db), mailSvc, logger, validate),
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		logger.Close()
		os.Exit(1)
	}
}
