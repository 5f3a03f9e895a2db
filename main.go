package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/placement-cell/placement-portal-api/api/handlers"
	"github.com/placement-cell/placement-portal-api/api/scheduler"

	"go.uber.org/zap"

	"github.com/placement-cell/placement-portal-api/config"
	"github.com/placement-cell/placement-portal-api/databases"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil { //initialize database and router
		log.Fatal(err)
	}

	dbHelper := a.DatabaseHelper()
	s := scheduler.NewScheduler(
		databases.NewOtpChallengeDatabase(dbHelper),
		databases.NewPendingRegistrationDatabase(dbHelper),
		databases.NewStudentDatabase(dbHelper),
		databases.NewSchedulerLockDatabase(dbHelper),
	)
	s.Start()
	defer s.Stop()

	zap.S().Infow("placement-portal-api is up and running",
		"port", a.Config.Port,
		"url", a.Config.BaseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", a.Config.Port), a.Router))
}
