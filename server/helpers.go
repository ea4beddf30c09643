package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ecotterell/carelink/server/auth"
	"github.com/ecotterell/carelink/server/gstorage"
	"github.com/ecotterell/carelink/server/models"
	"github.com/ecotterell/carelink/shared"
	"github.com/ecotterell/carelink/utils"
	"github.com/go-co-op/gocron"
	"github.com/spf13/viper"
)

type ResponsePayload struct {
	Errors  []string    `json:"errors,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ---------------------------------------------------------------------------------//
// Handler helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		logg.Info(payLoad.Errors)
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

// writeOperationResult maps an orchestrator outcome onto the response
// envelope: expected negative outcomes already arrived as status strings, so
// only absent records & hard failures take the error paths.
func writeOperationResult(rw http.ResponseWriter, status string, err error) {
	if errors.Is(err, models.ErrNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{models.ErrNotFound.Error()}}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]string{"status": status}}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Middleware helper functions
// --------------------------------------------------------------------------------//

func decodeAndVerifyAuthHeader(authHeaderValue string) DecodedJWT {
	authHeaderList := strings.Split(authHeaderValue, "Bearer ")
	if len(authHeaderList) < 2 {
		return DecodedJWT{ErrorMsg: "no token provided"}
	}

	tokenClaims, err := auth.DecodeJWT(authHeaderList[1], authKeyPair)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	// validate that the user account still exists
	if _, err = findUserFromSubject(tokenClaims.Subject); err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	return DecodedJWT{Claims: tokenClaims}
}

func findUserFromSubject(subject string) (*models.User, error) {
	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return nil, err
	}

	return store.FindUserByID(uint(id))
}

// currentUserID resolves the authenticated caller's record id from the
// request context.
func currentUserID(r *http.Request) (uint, error) {
	decodedJWT := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT)

	id, err := strconv.ParseUint(decodedJWT.Claims.Subject, 10, 64)
	if err != nil {
		return 0, err
	}

	return uint(id), nil
}

// ---------------------------------------------------------------------------------//
// Server helper functions
// --------------------------------------------------------------------------------//

func parseServerConfig(config *viper.Viper) *shared.ServerConfig {
	serverConfig := &shared.ServerConfig{}

	fatalOnError(config.Unmarshal(serverConfig))
	fatalOnError(validate.Struct(serverConfig))

	return serverConfig
}

func serve(server *http.Server) {
	logg.Infof("Carelink server is listening on port%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(scheduler *gocron.Scheduler, server *http.Server, gStorage *gstorage.GStorage, config shared.StorageConfig, dbPath string) {
	scheduler.Stop()

	if gStorage != nil {
		if err := gStorage.UploadFile(config.Bucket, config.Prefix, dbPath); err != nil {
			logg.Errorf("final sqlite backup failed: %v", err)
		}
	}

	// Shutdown server gracefully
	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("Carelink server shutdown failed:%+s", err)
	}

	logg.Infof("Carelink server stopped properly")
}

// restoreDatabaseIfMissing pulls the last backed-up database from storage
// when no local file exists yet, so a fresh host resumes from the backup.
func restoreDatabaseIfMissing(gStorage *gstorage.GStorage, config shared.StorageConfig, dbPath string) {
	exists, err := utils.FileExist(dbPath)
	fatalOnError(err)
	if exists {
		return
	}

	err = gStorage.DownloadFile(config.Bucket, config.Prefix, dbFileName, dbPath)
	if err == gstorage.ErrObjectNotExist {
		logg.Infof("no database backup found in bucket %v, starting fresh", config.Bucket)
		return
	}
	fatalOnError(err)
}

// configDirectory retrieves the directory holding carelink's data files,
// or logs an error message and exits if it's unable to.
func configDirectory(devMode bool) string {
	// Use 'carelink' folder in home directory for prod
	configFolderName := "carelink"
	rootDir, err := os.UserHomeDir()
	fatalOnError(err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(err)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(err)

	return configDir
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
