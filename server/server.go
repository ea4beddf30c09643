package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ecotterell/carelink/server/auth"
	"github.com/ecotterell/carelink/server/auth/key"
	"github.com/ecotterell/carelink/server/care"
	"github.com/ecotterell/carelink/server/cron"
	"github.com/ecotterell/carelink/server/dispatch"
	"github.com/ecotterell/carelink/server/fcm"
	"github.com/ecotterell/carelink/server/gstorage"
	"github.com/ecotterell/carelink/server/logger"
	"github.com/ecotterell/carelink/server/models"
	"github.com/ecotterell/carelink/server/presence"
	"github.com/ecotterell/carelink/server/sms"
	"github.com/ecotterell/carelink/shared"
	"github.com/go-co-op/gocron"
	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
)

const dbFileName = "carelink.db"

type RequestContextKey string

type DecodedJWT struct {
	Claims   *auth.CarelinkTokenClaims
	ErrorMsg string
}

var (
	logg     = logger.NewLogger()
	validate = validator.New()

	authKeyPair  *key.KeyPair
	store        *models.Store
	dispatcher   *dispatch.Dispatcher
	orchestrator *care.Orchestrator
)

// Start wires the store, gateway & orchestrator together and serves the API
// until interrupted.
func Start(config *viper.Viper, devMode bool) {
	serverConfig := parseServerConfig(config)
	configDir := configDirectory(devMode)
	dbPath := filepath.Join(configDir, dbFileName)

	backupEnabled := serverConfig.Google.Storage.EnableSqliteBackupAndSync == true
	var gStorage *gstorage.GStorage
	if backupEnabled {
		var err error
		gStorage, err = gstorage.NewGStorage(serverConfig.Google.ApplicationCredentials)
		fatalOnError(err)

		restoreDatabaseIfMissing(gStorage, serverConfig.Google.Storage, dbPath)
	}

	var err error
	store, err = models.NewStore(dbPath)
	fatalOnError(err)
	fatalOnError(store.AutoMigrate())

	authKeyPair, err = key.NewKeyPairFromRSAPrivateKeyPem(serverConfig.Carelink.PrivateKeyPem)
	fatalOnError(err)

	// Without credentials in dev mode there is no FCM project to talk to,
	// so the gateway runs in test mode.
	fcmTestMode := devMode && serverConfig.Google.ApplicationCredentials == ""
	gateway, err := fcm.NewClient(context.Background(), serverConfig.Google.ApplicationCredentials, fcmTestMode)
	fatalOnError(err)
	dispatcher = dispatch.NewDispatcher(gateway)

	var smsSender care.SMSSender
	if serverConfig.Twilio.AccountSid != "" {
		smsSender = sms.NewClient(serverConfig.Twilio, devMode)
	}

	orchestrator = care.NewOrchestrator(store, dispatcher, smsSender, serverConfig.Carelink.Matching)

	scheduler := cron.NewCronScheduler(serverConfig.Carelink.Cron.TimeZone)
	sweeper := presence.NewSweeper(
		store,
		scheduler,
		time.Duration(serverConfig.Carelink.Presence.TTLMinutes)*time.Minute,
		serverConfig.Carelink.Presence.SweepSchedule,
	)
	fatalOnError(sweeper.Schedule())

	if backupEnabled {
		scheduleDatabaseBackup(scheduler, gStorage, serverConfig.Google.Storage, dbPath)
	}
	scheduler.StartAsync()

	router := mux.NewRouter()
	registerRoutes(router)

	srv := &http.Server{
		Handler:      router,
		Addr:         fmt.Sprintf(":%v", serverConfig.Carelink.Listener.Port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	go serve(srv)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	cleanup(scheduler, srv, gStorage, serverConfig.Google.Storage, dbPath)
}

func registerRoutes(router *mux.Router) {
	router.Use(loggingMiddleware)
	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.HandleFunc("/jwks", jwksHandler).Methods("GET")

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(initialContextMiddleware, protectedRouteMiddleware)

	v1.HandleFunc("/care/request", requestCarerHandler).Methods("POST")
	v1.HandleFunc("/care/sos", sendSOSHandler).Methods("POST")
	v1.HandleFunc("/care/annotation", sendAnnotationHandler).Methods("POST")
	v1.HandleFunc("/care/accept", acceptCarerRequestHandler).Methods("POST")
	v1.HandleFunc("/care/disconnect", disconnectHandler).Methods("POST")
	v1.HandleFunc("/messages", createMessageHandler).Methods("POST")
	v1.HandleFunc("/messages/{uid}", getMessageHandler).Methods("GET")
	v1.HandleFunc("/contacts", addContactHandler).Methods("POST")
	v1.HandleFunc("/users/{uid}/presence", updatePresenceHandler).Methods("PUT")
	v1.HandleFunc("/dispatch/stats", dispatchStatsHandler).Methods("GET")
}

func scheduleDatabaseBackup(scheduler *gocron.Scheduler, gStorage *gstorage.GStorage, config shared.StorageConfig, dbPath string) {
	_, err := scheduler.Cron(config.SqliteBackupSchedule).Tag("sqlite_backup").Do(func() {
		if err := gStorage.UploadFile(config.Bucket, config.Prefix, dbPath); err != nil {
			logg.Errorf("sqlite backup failed: %v", err)
		}
	})
	fatalOnError(err)
}
