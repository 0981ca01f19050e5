package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var participantsHeader = []string{"participant_id", "site", "group"}

// One row per converted subject/session, replaced on re-runs.
var conversionLogHeader = []string{"subject_id", "date", "N.anat", "N.pet", "source", "user", "processing.time"}

// Shared by the processing and mapping stages under the derivatives root.
var derivativesLogHeader = []string{"subject_id", "date", "N.pet", "N.surf", "source", "user", "processing.time"}

const siteName = "Montreal_SiemmensPET-HRRT"

func parseTable(content []byte) ([]string, [][]string, error) {
	if len(content) == 0 {
		return nil, nil, nil
	}
	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

func renderTable(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Comma = '\t'
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readTable(path string) ([]string, [][]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return parseTable(content)
}

// upsertTableRow removes any row whose first column matches row[0] and
// appends the new row, so repeated runs keep exactly one row per key. The
// file is created with the given header if it does not exist yet.
func upsertTableRow(path string, header []string, row []string) error {
	return withTableLock(path, func(content []byte) ([]byte, error) {
		fileHeader, rows, err := parseTable(content)
		if err != nil {
			return nil, err
		}
		if fileHeader == nil {
			fileHeader = header
		}
		kept := make([][]string, 0, len(rows)+1)
		for _, r := range rows {
			if len(r) > 0 && r[0] == row[0] {
				continue
			}
			kept = append(kept, r)
		}
		kept = append(kept, row)
		return renderTable(fileHeader, kept)
	})
}

func deriveGroup(subject string) string {
	if strings.Contains(subject, "PX") {
		return "Patient"
	}
	return "Healthy"
}

func updateParticipantsTable(bidsDir string, subject string) error {
	row := []string{"sub-" + subject, siteName, deriveGroup(subject)}
	return upsertTableRow(filepath.Join(bidsDir, "participants.tsv"), participantsHeader, row)
}

// rebuildSessionsTable regenerates sub-<subject>_sessions.tsv from the
// session directories present on disk. The table is a projection of the
// tree, removing a session directory removes its row on the next run.
func rebuildSessionsTable(bidsDir string, subject string) error {
	sessions, err := listSessions(bidsDir, subject)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(sessions))
	for _, session := range sessions {
		rows = append(rows, []string{session})
	}
	path := filepath.Join(bidsDir, "sub-"+subject, fmt.Sprintf("sub-%s_sessions.tsv", subject))
	return withTableLock(path, func([]byte) ([]byte, error) {
		return renderTable([]string{"session_id"}, rows)
	})
}

func updateConversionLog(bidsDir string, row []string) error {
	return upsertTableRow(filepath.Join(bidsDir, "participants_bic2bids.tsv"), conversionLogHeader, row)
}

func updateDerivativesLog(derivativesDir string, row []string) error {
	return upsertTableRow(filepath.Join(derivativesDir, "participants_petpipe.tsv"), derivativesLogHeader, row)
}
