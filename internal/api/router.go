package api

import (
	"fmt"
	"log"
	"net/http"

	_ "github.com/devarsh10/userbase/docs"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/devarsh10/userbase/internal/api/handlers"
	"github.com/devarsh10/userbase/internal/api/middleware"
	"github.com/devarsh10/userbase/internal/config"
	"github.com/rs/cors"
)

func SetupRouter() http.Handler {
	mainMux := http.NewServeMux()
	c := cors.New(config.Envs.CorsConfig)

	mainMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	mainMux.HandleFunc("/docs/", httpSwagger.WrapHandler)

	userMux := http.NewServeMux()
	userMux.HandleFunc("/create", handlers.CreateUser)
	userMux.HandleFunc("/edit", handlers.EditUser)
	userMux.HandleFunc("/delete", handlers.DeleteUser)
	userMux.HandleFunc("/getAll", handlers.GetAllUsers)
	userMux.HandleFunc("/uploadImage", handlers.UploadImage)

	mainMux.Handle("/user/",
		http.StripPrefix("/user", userMux),
	)

	log.Println("Router initialized")
	handler := c.Handler(mainMux)
	handler = middleware.Logger(handler)
	return handler
}
