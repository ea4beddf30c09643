package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ecotterell/carelink/colors"
)

type ResponseWriterWithStatus struct {
	http.ResponseWriter
	Status int
}

func (r *ResponseWriterWithStatus) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		responseWriter := &ResponseWriterWithStatus{
			ResponseWriter: w,
			Status:         200,
		}

		defer func() {
			responseStatus := colors.Green(responseWriter.Status)
			if responseWriter.Status >= 400 {
				responseStatus = colors.Red(responseWriter.Status)
			}

			logg.Infof("%v %v %v %v",
				r.Method,
				r.RequestURI,
				responseStatus,
				colors.Yellow(fmt.Sprintf("[%v]", time.Since(start))))
		}()

		next.ServeHTTP(responseWriter, r)
	})
}

func initialContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "application/json")

		// Add decoded token to request context
		ctx := context.WithValue(
			r.Context(),
			RequestContextKey("decodedJWT"),
			decodeAndVerifyAuthHeader(r.Header.Get("Authorization")),
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func protectedRouteMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decodedJWT := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT)
		if decodedJWT.ErrorMsg != "" {
			writeResponse(w, ResponsePayload{Errors: []string{decodedJWT.ErrorMsg}}, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
