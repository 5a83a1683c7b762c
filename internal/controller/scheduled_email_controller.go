// internal/controller/scheduled_email_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/leadflow-backend/internal/errors"
	"github.com/unclebandit/leadflow-backend/internal/service"
)

type ScheduledEmailController struct {
	Service *service.ScheduledEmailService
}

func (c *ScheduledEmailController) Schedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccountID    int    `json:"account_id"`
		To           string `json:"to"`
		Subject      string `json:"subject"`
		Body         string `json:"body"`
		ScheduledFor string `json:"scheduled_for"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	scheduledFor, err := time.Parse(time.RFC3339, body.ScheduledFor)
	if err != nil {
		http.Error(w, "scheduled_for must be RFC3339", http.StatusBadRequest)
		return
	}

	email, err := c.Service.Schedule(body.AccountID, body.To, body.Subject, body.Body, scheduledFor)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(email)
}

func (c *ScheduledEmailController) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid scheduled email id", http.StatusBadRequest)
		return
	}
	accountID, _ := strconv.Atoi(r.URL.Query().Get("account_id"))

	if err := c.Service.Cancel(id, accountID); err != nil {
		var terminal *appErrors.ErrAlreadyTerminal
		var notFound *appErrors.ErrScheduledEmailNotFound
		switch {
		case errors.As(err, &terminal):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.As(err, &notFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, map[string]interface{}{"cancelled": id})
}

func (c *ScheduledEmailController) List(w http.ResponseWriter, r *http.Request) {
	accountID, _ := strconv.Atoi(r.URL.Query().Get("account_id"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	emails, pagination, err := c.Service.List(accountID, page, pageSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"data":       emails,
		"pagination": pagination,
	})
}

// ProcessDue is the on-demand trigger; the same sweep also runs on the
// server's timer.
func (c *ScheduledEmailController) ProcessDue(w http.ResponseWriter, r *http.Request) {
	result, err := c.Service.ProcessDue(time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}
