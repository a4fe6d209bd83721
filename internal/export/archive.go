package export

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ashureev/memelab/internal/domain"
)

// WriteArchive writes submissions.jsonl, submissions.csv and codes.csv into
// a zip archive on w.
func WriteArchive(w io.Writer, recs []*domain.SubmissionRecord) error {
	zw := zip.NewWriter(w)

	if err := writeJSONL(zw, recs); err != nil {
		return err
	}
	if err := writeCSV(zw, SubmissionsCSV, SubmissionsHeader, recs, SubmissionRow); err != nil {
		return err
	}
	if err := writeCSV(zw, CodesCSV, CodesHeader, recs, CodeRow); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func writeJSONL(zw *zip.Writer, recs []*domain.SubmissionRecord) error {
	f, err := zw.Create(SubmissionsJSONL)
	if err != nil {
		return fmt.Errorf("create %s: %w", SubmissionsJSONL, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	for _, rec := range recs {
		if err := enc.Encode(NewLine(rec)); err != nil {
			return fmt.Errorf("encode submission %d: %w", rec.ID, err)
		}
	}
	return nil
}

func writeCSV(zw *zip.Writer, name string, header []string, recs []*domain.SubmissionRecord, row func(*domain.SubmissionRecord) []string) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	for _, rec := range recs {
		if err := cw.Write(row(rec)); err != nil {
			return fmt.Errorf("write %s row: %w", name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return nil
}
