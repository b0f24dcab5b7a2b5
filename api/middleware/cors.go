package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/chronus-storefront/pkg/config"
)

var devCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// CORS lets the storefront frontend call the API and read the session token.
func CORS(app config.AppConfig, store config.StoreConfig) func(http.Handler) http.Handler {
	origins := []string{}
	if public := strings.TrimRight(strings.TrimSpace(store.PublicURL), "/"); public != "" {
		origins = append(origins, public)
	}
	if !app.IsProd() {
		origins = append(origins, devCORSOrigins...)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", SessionTokenHeader, requestIDHeader, "X-Requested-With"},
		ExposedHeaders:   []string{SessionTokenHeader, requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler
}
