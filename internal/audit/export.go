package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"time"
)

var csvHeader = []string{"id", "at", "tenant_id", "actor", "action", "resource", "resource_id", "ip_address", "changes"}

// WriteCSV encodes timeline rows, one line per audit entry.
func WriteCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		changes := ""
		if len(row.Changes) > 0 {
			data, err := json.Marshal(row.Changes)
			if err != nil {
				return nil, err
			}
			changes = string(data)
		}
		record := []string{
			row.ID,
			row.At.UTC().Format(time.RFC3339),
			row.TenantID,
			row.Actor,
			row.Action,
			row.Resource,
			row.ResourceID,
			row.IPAddress,
			changes,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
