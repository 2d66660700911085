package api

import (
	"bytes"
	"fmt"
	"net/http"

	"dentsched/internal/report"
)

// handleAppointmentsReport streams an appointments workbook for a date range.
// GET /api/v1/reports/appointments?start_date=&end_date=
func (s *HTTPServer) handleAppointmentsReport(w http.ResponseWriter, r *http.Request) {
	startDate := r.URL.Query().Get("start_date")
	endDate := r.URL.Query().Get("end_date")

	if _, _, err := validateRange(startDate, endDate); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writer := report.NewExcelizeWriter()
	defer writer.Close()

	generator := report.NewGenerator(s.store)
	if err := generator.WriteAppointmentsReport(r.Context(), writer, startDate, endDate); err != nil {
		s.log.Error().Err(err).Str("start_date", startDate).Str("end_date", endDate).Msg("report generation failed")
		writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}

	var buf bytes.Buffer
	if err := writer.Save(&buf); err != nil {
		s.log.Error().Err(err).Msg("report serialization failed")
		writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=appointments_%s_%s.xlsx", startDate, endDate))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
