package routes

import (
	"github.com/gofiber/fiber/v2"

	"billing-backend/controllers"
	"billing-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Protected endpoints (JWT or API key)
	protected := api.Group("")
	protected.Use(middlewares.Authenticate())

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency())

	// Then per-request tenant transaction (pins search_path and commits/rolls back)
	protected.Use(middlewares.TenantTx())

	// Projects
	protected.Post("/project", controllers.CreateProject)
	protected.Get("/projects", controllers.GetProjects)
	protected.Get("/project/:id", controllers.GetProject)
	protected.Put("/project/:id", controllers.UpdateProject)

	// Tasks (status changes go through the lifecycle services)
	protected.Post("/task", controllers.CreateTask)
	protected.Get("/tasks", controllers.GetTasks)
	protected.Get("/task/:id", controllers.GetTaskByID)
	protected.Put("/task/:id", controllers.UpdateTask)
	protected.Put("/task/:id/status", controllers.ChangeTaskStatus)
	protected.Put("/task/:id/archive", controllers.ArchiveTask)
	protected.Put("/task/:id/restore", controllers.RestoreTask)
	protected.Post("/tasks/purge", controllers.PurgeTasks)

	// Invoices (draft → sent → paid → cancelled)
	protected.Post("/invoice", controllers.CreateInvoice)
	protected.Get("/invoices", controllers.GetInvoices)
	protected.Get("/invoice/:id", controllers.GetInvoice)
	protected.Put("/invoices/:id", controllers.UpdateInvoice)
	protected.Delete("/invoices/:id", controllers.DeleteInvoice)
	protected.Post("/invoices/sweep-overdue", controllers.SweepOverdueInvoices)
	protected.Post("/invoices/:id/finalize", controllers.FinalizeInvoice)
	protected.Post("/invoices/:id/cancel", controllers.CancelInvoice)
	protected.Get("/invoices/:id/snapshots", controllers.GetInvoiceSnapshots)

	// Receivables & payments
	protected.Get("/receivables", controllers.GetReceivables)
	protected.Get("/receivable/:id", controllers.GetReceivable)
	protected.Post("/receivables/:id/payments", controllers.CreatePayment)
	protected.Get("/receivables/:id/payments", controllers.ListPayments)

	// Third-party API keys
	protected.Post("/apikey", controllers.CreateApiKey)
	protected.Get("/apikeys", controllers.GetApiKeys)
	protected.Delete("/apikey/:id", controllers.RevokeApiKey)

	// Display-currency rates
	protected.Get("/rates/:currency", controllers.GetRate)
}
