package routes

import (
	controllers "wildlife-licensing-backend/applications/controllers"

	"github.com/gofiber/fiber/v2"
)

// ApplicationRouterInit registers the licensing workflow endpoints. Every
// route except the payment webhook runs behind protected.
func ApplicationRouterInit(router fiber.Router, applicationController *controllers.ApplicationController, protected fiber.Handler) {
	api := router.Group("/api/v1")

	// Gateway callbacks authenticate by signature
	api.Post("/payments/stripe/webhook", applicationController.StripeWebhookController)
	api.Post("/payments/refund", protected, applicationController.RefundInvoiceController)

	// Applications
	applicationRoutes := api.Group("/applications", protected)
	applicationRoutes.Post("/estimate-price", applicationController.EstimatePriceController)
	applicationRoutes.Post("/", applicationController.CreateApplicationController)
	applicationRoutes.Get("/", applicationController.GetFilteredApplicationsController)
	applicationRoutes.Get("/:id", applicationController.GetApplicationController)
	applicationRoutes.Get("/:id/actions", applicationController.GetApplicationActionsController)
	applicationRoutes.Get("/:id/actions/export", applicationController.ExportApplicationActionsController)
	applicationRoutes.Post("/:id/submit", applicationController.SubmitApplicationController)
	applicationRoutes.Post("/:id/discard", applicationController.DiscardApplicationController)
	applicationRoutes.Post("/:id/checkout", applicationController.CheckoutController)
	applicationRoutes.Post("/:id/amendment-requests", applicationController.RequestAmendmentController)

	// Officer assignment
	applicationRoutes.Post("/:id/officer", applicationController.AssignOfficerController)
	applicationRoutes.Post("/:id/officer/me", applicationController.AssignToMeController)
	applicationRoutes.Delete("/:id/officer", applicationController.UnassignOfficerController)

	// Per activity
	activityRoutes := applicationRoutes.Group("/:id/activities/:activityId")
	activityRoutes.Post("/approver", applicationController.AssignApproverController)
	activityRoutes.Post("/approver/me", applicationController.MakeMeApproverController)
	activityRoutes.Delete("/approver", applicationController.UnassignApproverController)
	activityRoutes.Put("/processing-status", applicationController.SetProcessingStatusController)
	activityRoutes.Post("/propose-licence", applicationController.ProposeLicenceController)
	activityRoutes.Post("/propose-decline", applicationController.ProposeDeclineController)
	activityRoutes.Post("/waive-fees", applicationController.WaiveFeesController)
	activityRoutes.Post("/final-decision", applicationController.FinalDecisionController)
	activityRoutes.Post("/reissue", applicationController.ReissueActivityController)
	activityRoutes.Post("/discard", applicationController.DiscardActivityController)
	activityRoutes.Post("/suspend", applicationController.SuspendActivityController)
	activityRoutes.Post("/reinstate", applicationController.ReinstateActivityController)
	activityRoutes.Post("/cancel", applicationController.CancelActivityController)
	activityRoutes.Post("/surrender", applicationController.SurrenderActivityController)
	activityRoutes.Post("/assessments", applicationController.SendToAssessorController)
	activityRoutes.Get("/assessments/latest", applicationController.LatestAssessmentController)
	activityRoutes.Post("/assessments/complete-mine", applicationController.CompleteMyAssessmentsController)

	// Assessments
	assessmentRoutes := api.Group("/assessments/:assessmentId", protected)
	assessmentRoutes.Post("/complete", applicationController.CompleteAssessmentController)
	assessmentRoutes.Post("/recall", applicationController.RecallAssessmentController)
	assessmentRoutes.Post("/remind", applicationController.RemindAssessmentController)
}
