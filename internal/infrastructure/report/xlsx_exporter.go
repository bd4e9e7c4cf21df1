package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/domain/entity"
)

const (
	requestsSheet = "Requests"
	summarySheet  = "Summary"
	timeLayout    = "2006-01-02 15:04"
)

var requestHeaders = []interface{}{
	"Document No", "Title", "Category", "Correction Type", "Department",
	"Requester", "Status", "Step", "Created", "Updated",
}

// XLSXExporter renders request listings as an Excel workbook
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// Export writes one row per request plus a per-status summary sheet
func (e *XLSXExporter) Export(ctx context.Context, requests []*entity.Request, statuses map[int64]*entity.Status) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", requestsSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := e.writeRequests(ctx, f, headerStyle, requests, statuses); err != nil {
		return nil, err
	}
	if err := e.writeSummary(f, headerStyle, requests, statuses); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Request workbook generated", zap.Int("rows", len(requests)), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

func (e *XLSXExporter) writeRequests(ctx context.Context, f *excelize.File, headerStyle int, requests []*entity.Request, statuses map[int64]*entity.Status) error {
	if err := f.SetSheetRow(requestsSheet, "A1", &requestHeaders); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(requestsSheet, "A1", "J1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	statusStyles := make(map[string]int)
	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			return err
		}

		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}

		correctionType := ""
		if req.CorrectionTypeID != nil {
			correctionType = fmt.Sprintf("%d", *req.CorrectionTypeID)
		}
		values := []interface{}{
			req.DocumentNo,
			req.Title,
			req.CategoryID,
			correctionType,
			req.DepartmentID,
			req.RequesterID,
			statusLabel(req, statuses),
			req.CurrentApprovalStep,
			req.CreatedAt.Format(timeLayout),
			req.UpdatedAt.Format(timeLayout),
		}
		if err := f.SetSheetRow(requestsSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}

		if st, ok := statuses[req.CurrentStatusID]; ok && st.Color != "" {
			styleID, ok := statusStyles[st.Color]
			if !ok {
				styleID, err = f.NewStyle(&excelize.Style{
					Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{st.Color}},
				})
				if err != nil {
					e.logger.Warn("Invalid status color", zap.String("status", st.Code), zap.String("color", st.Color), zap.Error(err))
					continue
				}
				statusStyles[st.Color] = styleID
			}
			statusCell := fmt.Sprintf("G%d", row)
			if err := f.SetCellStyle(requestsSheet, statusCell, statusCell, styleID); err != nil {
				return fmt.Errorf("failed to style status cell: %w", err)
			}
		}
	}

	if err := f.SetColWidth(requestsSheet, "A", "A", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(requestsSheet, "B", "B", 40); err != nil {
		return err
	}
	if err := f.SetColWidth(requestsSheet, "I", "J", 18); err != nil {
		return err
	}
	return f.SetPanes(requestsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (e *XLSXExporter) writeSummary(f *excelize.File, headerStyle int, requests []*entity.Request, statuses map[int64]*entity.Status) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	header := []interface{}{"Status", "Requests"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return err
	}

	counts := make(map[int64]int)
	for _, req := range requests {
		counts[req.CurrentStatusID]++
	}
	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		oi, oj := displayOrder(statuses, ids[i]), displayOrder(statuses, ids[j])
		if oi != oj {
			return oi < oj
		}
		return ids[i] < ids[j]
	})

	for i, id := range ids {
		label := fmt.Sprintf("#%d", id)
		if st, ok := statuses[id]; ok {
			label = st.Code
		}
		row := []interface{}{label, counts[id]}
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 24)
}

func statusLabel(req *entity.Request, statuses map[int64]*entity.Status) string {
	if st, ok := statuses[req.CurrentStatusID]; ok && st.Name != "" && !strings.EqualFold(st.Name, st.Code) {
		return fmt.Sprintf("%s (%s)", st.Name, st.Code)
	}
	return req.Status
}

func displayOrder(statuses map[int64]*entity.Status, id int64) int {
	if st, ok := statuses[id]; ok {
		return st.DisplayOrder
	}
	return math.MaxInt
}

var _ port.RequestExporter = (*XLSXExporter)(nil)
