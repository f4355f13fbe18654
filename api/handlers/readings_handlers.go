package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"coldwatch/core/incident"
	"coldwatch/core/ingest"
	"coldwatch/core/store"
	"coldwatch/core/utils"
)

type ReadingsHandler struct {
	readings store.ReadingsStore
	ingest   *ingest.Service
	audits   store.AuditStore
	logger   *utils.Logger
}

func NewReadingsHandler(readings store.ReadingsStore, ingestSvc *ingest.Service, audits store.AuditStore, logger *utils.Logger) *ReadingsHandler {
	return &ReadingsHandler{readings: readings, ingest: ingestSvc, audits: audits, logger: logger}
}

func (h *ReadingsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	last, err := h.readings.Latest(r.Context())
	if err != nil {
		h.logger.Errorf("latest reading: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Aucune donnée disponible"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"temperature": last.Temperature,
		"humidity":    last.Humidity,
		"timestamp":   last.RecordedAt.UTC().Format(time.RFC3339),
	})
}

func (h *ReadingsHandler) ChartData(w http.ResponseWriter, r *http.Request) {
	list, err := h.readings.ListAll(r.Context(), 0)
	h.writeChartData(w, list, err)
}

func (h *ReadingsHandler) ChartDataDay(w http.ResponseWriter, r *http.Request) {
	list, err := h.readings.ListSince(r.Context(), utils.NowUTC().Add(-24*time.Hour))
	h.writeChartData(w, list, err)
}

func (h *ReadingsHandler) ChartDataWeek(w http.ResponseWriter, r *http.Request) {
	list, err := h.readings.ListSince(r.Context(), utils.NowUTC().Add(-7*24*time.Hour))
	h.writeChartData(w, list, err)
}

func (h *ReadingsHandler) ChartDataMonth(w http.ResponseWriter, r *http.Request) {
	list, err := h.readings.ListSince(r.Context(), utils.NowUTC().Add(-30*24*time.Hour))
	h.writeChartData(w, list, err)
}

func (h *ReadingsHandler) writeChartData(w http.ResponseWriter, list []store.Reading, err error) {
	if err != nil {
		h.logger.Errorf("chart data: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	temps := make([]string, 0, len(list))
	temperature := make([]float64, 0, len(list))
	humidity := make([]float64, 0, len(list))
	for _, reading := range list {
		temps = append(temps, reading.RecordedAt.UTC().Format(time.RFC3339))
		temperature = append(temperature, reading.Temperature)
		humidity = append(humidity, reading.Humidity)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"temps":       temps,
		"temperature": temperature,
		"humidity":    humidity,
	})
}

func (h *ReadingsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.readings.ListAll(r.Context(), 0)
	if err != nil {
		h.logger.Errorf("list readings: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	data := make([]map[string]interface{}, 0, len(list))
	for _, reading := range list {
		data = append(data, map[string]interface{}{
			"id":   reading.ID,
			"temp": reading.Temperature,
			"hum":  reading.Humidity,
			"dt":   reading.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

type readingPayload struct {
	Temp float64 `json:"temp"`
	Hum  float64 `json:"hum"`
}

func (h *ReadingsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var p readingPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Invalid JSON"})
		return
	}
	reading, err := h.ingest.Ingest(r.Context(), p.Temp, p.Hum, utils.NowUTC())
	if err != nil {
		if errors.Is(err, incident.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Valeurs invalides"})
			return
		}
		h.logger.Errorf("ingest reading: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":   reading.ID,
		"temp": reading.Temperature,
		"hum":  reading.Humidity,
		"dt":   reading.RecordedAt.UTC().Format(time.RFC3339),
	})
}

func (h *ReadingsHandler) ManualEntry(w http.ResponseWriter, r *http.Request) {
	var p readingPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Invalid JSON"})
		return
	}
	if err := incident.ValidateManualReading(p.Temp, p.Hum); err != nil {
		msg := "Valeurs invalides"
		if p.Hum < 0 || p.Hum > 100 {
			msg = "L'humidité doit être entre 0 et 100%"
		}
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": msg})
		return
	}
	reading, err := h.ingest.Ingest(r.Context(), p.Temp, p.Hum, utils.NowUTC())
	if err != nil {
		h.logger.Errorf("manual entry: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if sess := sessionFrom(r); sess != nil {
		_ = h.audits.Log(r.Context(), sess.Username, "readings.manual_entry",
			"temp="+strconv.FormatFloat(p.Temp, 'f', 1, 64)+" hum="+strconv.FormatFloat(p.Hum, 'f', 1, 64))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"message":     "Données enregistrées avec succès",
		"id":          reading.ID,
		"temperature": reading.Temperature,
		"humidity":    reading.Humidity,
	})
}

func (h *ReadingsHandler) DownloadCSV(w http.ResponseWriter, r *http.Request) {
	list, err := h.readings.ListAll(r.Context(), 0)
	if err != nil {
		h.logger.Errorf("csv export: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="coldwatch_data.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"ID", "Temperature (°C)", "Humidite (%)", "Date et Heure"})
	for _, reading := range list {
		_ = cw.Write([]string{
			strconv.FormatInt(reading.ID, 10),
			strconv.FormatFloat(reading.Temperature, 'f', 1, 64),
			strconv.FormatFloat(reading.Humidity, 'f', 1, 64),
			reading.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
}
