package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/evcharge/central/session"
	"github.com/evcharge/central/store"
)

func listCPs(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Manager.ListCPs())
	}
}

func listDrivers(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Manager.ListDrivers())
	}
}

func listHistory(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		recs, err := d.Manager.History(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func getStatus(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := d.Manager.Status()
		writeJSON(w, http.StatusOK, struct {
			session.Status
			WeatherAlertList []*store.WeatherAlert `json:"weather_alert_list"`
		}{status, d.Manager.WeatherAlerts()})
	}
}

type weatherRequest struct {
	CPID        string  `json:"cp_id"`
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
}

func weatherAlert(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req weatherRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CPID == "" {
			writeError(w, http.StatusBadRequest, "cp_id, location, temperature required")
			return
		}
		if err := d.Manager.WeatherAlert(r.Context(), req.CPID, req.Location, req.Temperature); err != nil {
			if err == session.ErrCPNotFound {
				writeError(w, http.StatusNotFound, "unknown cp")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"cp_id": req.CPID, "status": "alerted"})
	}
}

func weatherClear(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req weatherRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CPID == "" {
			writeError(w, http.StatusBadRequest, "cp_id required")
			return
		}
		if err := d.Manager.WeatherClear(r.Context(), req.CPID); err != nil {
			if err == session.ErrCPNotFound {
				writeError(w, http.StatusNotFound, "unknown cp")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"cp_id": req.CPID, "status": "cleared"})
	}
}

func adminStopCP(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := d.Manager.OperatorStop(r.Context(), id); err != nil {
			if err == session.ErrCPNotFound {
				writeError(w, http.StatusNotFound, "unknown cp")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"cp_id": id, "status": "stopped"})
	}
}

func adminResumeCP(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := d.Manager.OperatorResume(r.Context(), id); err != nil {
			if err == session.ErrCPNotFound {
				writeError(w, http.StatusNotFound, "unknown cp")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"cp_id": id, "status": "resumed"})
	}
}
