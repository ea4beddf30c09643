package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ecotterell/carelink/server/auth/key"
	"github.com/ecotterell/carelink/server/models"
	"github.com/gorilla/mux"
)

type sendAnnotationParams struct {
	Points string `json:"points" validate:"required"`
}

type acceptCarerRequestParams struct {
	RequesterID uint `json:"requester_id" validate:"required"`
}

type createMessageParams struct {
	ReceiverID uint   `json:"receiver_id" validate:"required"`
	Text       string `json:"text" validate:"required"`
}

type addContactParams struct {
	Email string `json:"email" validate:"required,email"`
}

type updatePresenceParams struct {
	IsOnline  bool    `json:"is_online"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

func requestCarerHandler(rw http.ResponseWriter, r *http.Request) {
	callerID, err := currentUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusUnauthorized)
		return
	}

	status, err := orchestrator.RequestCarer(r.Context(), callerID)
	writeOperationResult(rw, status, err)
}

func sendSOSHandler(rw http.ResponseWriter, r *http.Request) {
	callerID, err := currentUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusUnauthorized)
		return
	}

	status, err := orchestrator.SendSOS(r.Context(), callerID)
	writeOperationResult(rw, status, err)
}

func sendAnnotationHandler(rw http.ResponseWriter, r *http.Request) {
	callerID, err := currentUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusUnauthorized)
		return
	}

	params := sendAnnotationParams{}
	if !decodeAndValidateParams(rw, r, &params) {
		return
	}

	status, err := orchestrator.SendAnnotation(r.Context(), callerID, params.Points)
	writeOperationResult(rw, status, err)
}

func acceptCarerRequestHandler(rw http.ResponseWriter, r *http.Request) {
	callerID, err := currentUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusUnauthorized)
		return
	}

	params := acceptCarerRequestParams{}
	if !decodeAndValidateParams(rw, r, &params) {
		return
	}

	status, err := orchestrator.AcceptCarerRequest(r.Context(), callerID, params.RequesterID)
	writeOperationResult(rw, status, err)
}

func disconnectHandler(rw http.ResponseWriter, r *http.Request) {
	callerID, err := currentUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusUnauthorized)
		return
	}

	status, err := orchestrator.Disconnect(r.Context(), callerID)
	writeOperationResult(rw, status, err)
}

// createMessageHandler persists the chat message, then relays it to the
// receiver - the notification is triggered by record creation, mirroring a
// document-store onCreate trigger.
func createMessageHandler(rw http.ResponseWriter, r *http.Request) {
	callerID, err := currentUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusUnauthorized)
		return
	}

	params := createMessageParams{}
	if !decodeAndValidateParams(rw, r, &params) {
		return
	}

	message := &models.Message{
		SenderID:   callerID,
		ReceiverID: params.ReceiverID,
		Text:       params.Text,
	}
	if err := store.CreateMessage(message); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	status, err := orchestrator.ChatNotification(r.Context(), message)
	writeOperationResult(rw, status, err)
}

// getMessageHandler fetches a single message by its uid. Only the two
// participants may read it.
func getMessageHandler(rw http.ResponseWriter, r *http.Request) {
	callerID, err := currentUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusUnauthorized)
		return
	}

	message, err := store.FindMessageByUID(mux.Vars(r)["uid"])
	if errors.Is(err, models.ErrNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{models.ErrNotFound.Error()}}, http.StatusNotFound)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	if message.SenderID != callerID && message.ReceiverID != callerID {
		writeResponse(rw, ResponsePayload{Errors: []string{"action is forbidden"}}, http.StatusForbidden)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: message}, http.StatusOK)
}

func addContactHandler(rw http.ResponseWriter, r *http.Request) {
	callerID, err := currentUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusUnauthorized)
		return
	}

	params := addContactParams{}
	if !decodeAndValidateParams(rw, r, &params) {
		return
	}

	status, err := orchestrator.AddContact(r.Context(), callerID, params.Email)
	writeOperationResult(rw, status, err)
}

func updatePresenceHandler(rw http.ResponseWriter, r *http.Request) {
	callerID, err := currentUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusUnauthorized)
		return
	}

	// clients may only report their own presence
	if mux.Vars(r)["uid"] != fmt.Sprint(callerID) {
		writeResponse(rw, ResponsePayload{Errors: []string{"action is forbidden"}}, http.StatusForbidden)
		return
	}

	params := updatePresenceParams{}
	if !decodeAndValidateParams(rw, r, &params) {
		return
	}

	err = store.UpdatePresence(callerID, params.IsOnline, params.Latitude, params.Longitude)
	writeOperationResult(rw, "Presence updated", err)
}

func dispatchStatsHandler(rw http.ResponseWriter, r *http.Request) {
	writeResponse(rw, ResponsePayload{Success: true, Data: dispatcher.Stats()}, http.StatusOK)
}

func jwksHandler(rw http.ResponseWriter, r *http.Request) {
	keyPairJWK, err := authKeyPair.JWK()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	rw.Header().Add("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(key.ExportJWKAsJWKS(keyPairJWK))
}

func healthHandler(rw http.ResponseWriter, r *http.Request) {
	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// decodeAndValidateParams decodes the request body into 'params' and runs
// the validators, writing the 4xx response itself when either step fails.
func decodeAndValidateParams(rw http.ResponseWriter, r *http.Request, params interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(params); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return false
	}

	if errs := validate.Struct(params); errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return false
	}

	return true
}
