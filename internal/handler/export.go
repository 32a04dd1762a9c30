package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkordes/visit-tracker/internal/domain"
)

// csvHeaders defines the column names written as the first row of any CSV export.
var csvHeaders = []string{
	"journey_id", "user_id", "leg_id", "sequence",
	"start_location", "started_at", "end_location", "ended_at",
	"mileage", "leg_status", "is_final_leg",
	"appointment_id_from", "appointment_id_to",
}

// MileageRow is one row of the JSON export.
type MileageRow struct {
	JourneyID         string     `json:"journey_id"`
	UserID            string     `json:"user_id"`
	LegID             string     `json:"leg_id"`
	Sequence          int        `json:"sequence"`
	StartLocation     *string    `json:"start_location,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	EndLocation       *string    `json:"end_location,omitempty"`
	EndedAt           *time.Time `json:"ended_at"`
	Mileage           *float64   `json:"mileage"`
	LegStatus         string     `json:"leg_status"`
	IsFinalLeg        bool       `json:"is_final_leg"`
	AppointmentIDFrom *string    `json:"appointment_id_from,omitempty"`
	AppointmentIDTo   *string    `json:"appointment_id_to,omitempty"`
}

// ExportJourney handles GET /journeys/{journeyId}/export.
// It returns the journey's mileage log, one row per leg in travel order.
// Use ?format=csv to receive CSV; default is JSON.
func (s *Server) ExportJourney(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "journeyId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var format *string
	if err := queryParam(r, "format", &format); err != nil {
		badRequest(w, err.Error())
		return
	}
	wantCSV := false
	switch derefString(format) {
	case "", "json":
	case "csv":
		wantCSV = true
	default:
		badRequest(w, "format must be csv or json")
		return
	}

	rows, err := s.journeys.Export(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err, "journey")
		return
	}

	if wantCSV {
		writeCSV(w, fmt.Sprintf("journey-%s.csv", id), rows)
		return
	}
	writeJSON(w, http.StatusOK, buildJSONRows(rows))
}

// buildJSONRows converts domain rows to the JSON response.
func buildJSONRows(rows []domain.MileageRow) []MileageRow {
	out := make([]MileageRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, MileageRow{
			JourneyID:         r.JourneyID,
			UserID:            r.UserID,
			LegID:             r.LegID,
			Sequence:          r.Sequence,
			StartLocation:     nilIfEmpty(r.StartLocation),
			StartedAt:         r.StartedAt,
			EndLocation:       nilIfEmpty(r.EndLocation),
			EndedAt:           r.EndedAt,
			Mileage:           r.Mileage,
			LegStatus:         string(r.Status),
			IsFinalLeg:        r.IsFinalLeg,
			AppointmentIDFrom: nilIfEmpty(r.AppointmentFrom),
			AppointmentIDTo:   nilIfEmpty(r.AppointmentTo),
		})
	}
	return out
}

// writeCSV encodes domain rows as CSV with a download filename.
func writeCSV(w http.ResponseWriter, filename string, rows []domain.MileageRow) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer.Write never returns an error.
	cw.Write(csvHeaders)
	for _, r := range rows {
		//nolint:errcheck
		cw.Write(rowToCSVRecord(r))
	}
	cw.Flush()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// rowToCSVRecord encodes a domain.MileageRow as a flat string slice.
// Nil times and mileage are encoded as empty strings.
func rowToCSVRecord(r domain.MileageRow) []string {
	mileage := ""
	if r.Mileage != nil {
		mileage = strconv.FormatFloat(*r.Mileage, 'f', 1, 64)
	}
	return []string{
		r.JourneyID,
		r.UserID,
		r.LegID,
		strconv.Itoa(r.Sequence),
		r.StartLocation,
		r.StartedAt.UTC().Format(time.RFC3339),
		r.EndLocation,
		formatOptionalTime(r.EndedAt),
		mileage,
		string(r.Status),
		strconv.FormatBool(r.IsFinalLeg),
		r.AppointmentFrom,
		r.AppointmentTo,
	}
}

// formatOptionalTime returns the RFC3339 representation of t, or "" if t is nil.
func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
