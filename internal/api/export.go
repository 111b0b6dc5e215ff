package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const exportSheet = "Reports"

// handleExport streams the active reports as an xlsx workbook for
// offline coordination work.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	events, err := s.exporter.ListActive(r.Context())
	if err != nil {
		writeError(w, s.log, http.StatusInternalServerError, "", err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), exportSheet)

	headers := []string{"ID", "Time (UTC)", "Kind", "Latitude", "Longitude", "Status", "Contact", "Text", "Photos"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, h)
	}

	for row, e := range events {
		values := []any{
			e.ID,
			time.Unix(e.Ts, 0).UTC().Format("2006-01-02 15:04:05"),
			e.Kind,
			deref(e.Lat),
			deref(e.Lon),
			e.Status,
			derefStr(e.Contact),
			derefStr(e.Text),
			e.PhotoCount,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(exportSheet, cell, v)
		}
	}

	filename := fmt.Sprintf("firewatch-export-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := f.Write(w); err != nil {
		s.log.Error("export write failed", zap.Error(err))
	}
}

func deref(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
