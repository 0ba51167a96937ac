package analytics

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	CSVContentType  = "text/csv; charset=utf-8"

	summarySheet    = "Summary"
	recipientsSheet = "Recipients"
	linksSheet      = "Links"
)

var recipientHeader = []string{"Email", "Contact ID", "Status", "Last Event"}

func recipientRow(r Recipient) []string {
	last := ""
	if !r.LastEventAt.IsZero() {
		last = r.LastEventAt.UTC().Format(time.RFC3339)
	}
	return []string{r.Email, r.ContactID, string(r.Status), last}
}

// CSV writes the per-recipient status list.
func CSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(recipientHeader); err != nil {
		return nil, err
	}
	for _, rec := range r.Recipients {
		if err := w.Write(recipientRow(rec)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSX renders the report as a workbook with a summary sheet, the
// per-recipient status list and the top links.
func XLSX(r *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	summary := [][]any{
		{"Campaign", r.Campaign.Title},
		{"Subject", r.Campaign.Subject},
		{"Status", string(r.Campaign.Status)},
		{"Recipients", r.Metrics.Recipients},
		{"Delivered", r.Metrics.Delivered},
		{"Bounced", r.Metrics.Bounced},
		{"Opened", r.Metrics.Opened},
		{"Clicked", r.Metrics.Clicked},
		{"Complaints", r.Metrics.Complaints},
		{"Open rate (%)", r.Metrics.OpenRate},
		{"Click rate (%)", r.Metrics.ClickRate},
		{"Click-to-open rate (%)", r.Metrics.ClickToOpenRate},
		{"NPS responses", r.Feedback.Responses},
		{"NPS average", r.Feedback.Average},
		{"NPS", r.Feedback.Score},
		{"Generated at", r.GeneratedAt.Format(time.RFC3339)},
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(recipientsSheet); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	rows := make([][]any, 0, len(r.Recipients)+1)
	rows = append(rows, toAny(recipientHeader))
	for _, rec := range r.Recipients {
		rows = append(rows, toAny(recipientRow(rec)))
	}
	if err := writeRows(f, recipientsSheet, rows); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(linksSheet); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	links := [][]any{{"URL", "Code", "Clicks"}}
	for _, l := range r.TopLinks {
		links = append(links, []any{l.OriginalURL, l.Code, l.Clicks})
	}
	if err := writeRows(f, linksSheet, links); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("xlsx: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
