package handlers

import (
	"context"
	"errors"
	"net/http"

	mjolnirUtils "github.com/dfryer1193/mjolnir/utils"
	"github.com/dfryer1193/shift/api"
	"github.com/dfryer1193/shift/internal/migrations"
	"github.com/rs/zerolog/log"
)

type StatusProvider interface {
	Summary(ctx context.Context) (*api.StatusSummary, error)
	Records(ctx context.Context) ([]*api.MigrationRecord, error)
}

type HealthChecker interface {
	Check(ctx context.Context) *api.HealthReport
}

type RollbackManager interface {
	RollbackLast(ctx context.Context) (string, error)
}

// StatusHandler serves the read-only operational surface plus the guarded
// rollback endpoint.
type StatusHandler struct {
	status   StatusProvider
	health   HealthChecker
	rollback RollbackManager
}

func NewStatusHandler(status StatusProvider, health HealthChecker, rollback RollbackManager) *StatusHandler {
	return &StatusHandler{
		status:   status,
		health:   health,
		rollback: rollback,
	}
}

func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.status.Summary(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to build status summary")
		respondError(w, r, http.StatusInternalServerError, "error fetching migration status")
		return
	}

	mjolnirUtils.RespondJSON(w, r, http.StatusOK, summary)
}

func (h *StatusHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.status.Records(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to load migration records")
		respondError(w, r, http.StatusInternalServerError, "error fetching migration records")
		return
	}

	mjolnirUtils.RespondJSON(w, r, http.StatusOK, &api.MigrationList{Migrations: records})
}

func (h *StatusHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := h.health.Check(r.Context())

	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	mjolnirUtils.RespondJSON(w, r, status, report)
}

type rollbackRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *StatusHandler) PostRollback(w http.ResponseWriter, r *http.Request) {
	req := &rollbackRequest{}
	if _, err := mjolnirUtils.DecodeJSON(r, req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Confirm {
		respondError(w, r, http.StatusBadRequest, "rollback requires confirm=true")
		return
	}

	version, err := h.rollback.RollbackLast(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, migrations.ErrNothingToRollback):
			respondError(w, r, http.StatusConflict, err.Error())
		case errors.Is(err, migrations.ErrRollbackUnavailable), errors.Is(err, migrations.ErrRollbackDisabled):
			respondError(w, r, http.StatusUnprocessableEntity, err.Error())
		default:
			log.Error().Err(err).Msg("rollback failed")
			respondError(w, r, http.StatusInternalServerError, "rollback failed")
		}
		return
	}

	mjolnirUtils.RespondJSON(w, r, http.StatusOK, map[string]string{"rolledBack": version})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	mjolnirUtils.RespondJSON(w, r, status, map[string]string{"error": message})
}
