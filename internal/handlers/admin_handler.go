package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Reconciler removes discussions whose project no longer exists.
type Reconciler interface {
	ReconcileOrphans(ctx context.Context) (int, error)
}

type AdminHandler struct {
	reconciler Reconciler
}

func NewAdminHandler(reconciler Reconciler) *AdminHandler {
	return &AdminHandler{reconciler: reconciler}
}

// Reconcile runs the orphaned-discussion sweep immediately
// @Summary Sweep orphaned discussions
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "removed"
// @Failure 403 {object} map[string]interface{} "Access denied"
// @Router /admin/reconcile [post]
func (h *AdminHandler) Reconcile(c echo.Context) error {
	removed, err := h.reconciler.ReconcileOrphans(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"removed": removed})
}
