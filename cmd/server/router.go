package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jiweiyuan/muse/internal/api"
	apiMiddleware "github.com/jiweiyuan/muse/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(app.taskService)
	projectHandler := api.NewProjectHandler(app.projectService)
	healthHandler := api.NewHealthHandler(app.taskService, app.worker)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Task endpoints
			r.Post("/tasks", taskHandler.CreateTask)
			r.Get("/tasks", taskHandler.ListTasks)
			r.Get("/tasks/{id}", taskHandler.GetTask)
			r.Delete("/tasks/{id}", taskHandler.CancelTask)

			// Project endpoints
			r.Post("/projects", projectHandler.CreateProject)
			r.Get("/projects/{id}", projectHandler.GetProject)
		})
	})

	// Health check endpoint (public)
	r.Get("/healthz", healthHandler.Health)

	return r
}
