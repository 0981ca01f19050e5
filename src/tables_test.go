package main

// Importing all the required packages for our tests to work
import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func Test_upsertTableRow(t *testing.T) {
	dir, err := ioutil.TempDir("", "testtables")
	check(err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "participants_bic2bids.tsv")

	// The first upsert creates the file with its header row.
	check(upsertTableRow(path, conversionLogHeader, []string{"sub-01_ses-01", "2025-05-02", "1", "1", "/data/a", "me", "4.2"}))
	header, rows, err := readTable(path)
	check(err)
	if !reflect.DeepEqual(header, conversionLogHeader) {
		t.Errorf("upsertTableRow() header = %v, want %v", header, conversionLogHeader)
	}
	if len(rows) != 1 {
		t.Errorf("upsertTableRow() wrote %d rows, want 1", len(rows))
	}

	// A second run for the same subject/session replaces its row.
	check(upsertTableRow(path, conversionLogHeader, []string{"sub-01_ses-01", "2025-05-03", "1", "1", "/data/a", "me", "3.9"}))
	// A different key appends.
	check(upsertTableRow(path, conversionLogHeader, []string{"sub-02_ses-01", "2025-05-03", "1", "1", "/data/b", "me", "5.0"}))

	_, rows, err = readTable(path)
	check(err)
	want := [][]string{
		{"sub-01_ses-01", "2025-05-03", "1", "1", "/data/a", "me", "3.9"},
		{"sub-02_ses-01", "2025-05-03", "1", "1", "/data/b", "me", "5.0"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("upsertTableRow() rows = %v, want %v", rows, want)
	}
}

func Test_parseTable(t *testing.T) {
	tests := []struct {
		name       string     // The name of the test
		content    string     // Raw file content
		wantHeader []string   // Expected header
		wantRows   [][]string // Expected data rows
	}{
		{"Header and rows",
			"participant_id\tsite\tgroup\nsub-01\tMontreal_SiemmensPET-HRRT\tHealthy\n",
			[]string{"participant_id", "site", "group"},
			[][]string{{"sub-01", "Montreal_SiemmensPET-HRRT", "Healthy"}}},
		{"Header only",
			"session_id\n",
			[]string{"session_id"},
			[][]string{}},
		{"Empty file", "", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, rows, err := parseTable([]byte(tt.content))
			if err != nil {
				t.Errorf("parseTable() error = %v", err)
				return
			}
			if !reflect.DeepEqual(header, tt.wantHeader) {
				t.Errorf("parseTable() header = %v, want %v", header, tt.wantHeader)
			}
			if !reflect.DeepEqual(rows, tt.wantRows) {
				t.Errorf("parseTable() rows = %v, want %v", rows, tt.wantRows)
			}
		})
	}
}

func Test_renderTableRoundtrip(t *testing.T) {
	header := []string{"subject_id", "date", "N.pet"}
	rows := [][]string{{"sub-01_ses-01", "2025-05-02", "4"}, {"sub-02_ses-01", "2025-05-02", "4"}}
	content, err := renderTable(header, rows)
	check(err)
	gotHeader, gotRows, err := parseTable(content)
	check(err)
	if !reflect.DeepEqual(gotHeader, header) || !reflect.DeepEqual(gotRows, rows) {
		t.Errorf("parseTable(renderTable()) = %v %v, want %v %v", gotHeader, gotRows, header, rows)
	}
}

func Test_deriveGroup(t *testing.T) {
	tests := []struct {
		name    string // The name of the test
		subject string // Bare subject label
		want    string // The group we expect
	}{
		{"Patient code", "PX003", "Patient"},
		{"Healthy control", "HC001", "Healthy"},
		{"Plain number", "01", "Healthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveGroup(tt.subject); got != tt.want {
				t.Errorf("deriveGroup() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_updateParticipantsTable(t *testing.T) {
	dir, err := ioutil.TempDir("", "testtables")
	check(err)
	defer os.RemoveAll(dir)

	check(updateParticipantsTable(dir, "PX003"))
	check(updateParticipantsTable(dir, "PX003"))
	check(updateParticipantsTable(dir, "01"))

	_, rows, err := readTable(filepath.Join(dir, "participants.tsv"))
	check(err)
	want := [][]string{
		{"sub-PX003", siteName, "Patient"},
		{"sub-01", siteName, "Healthy"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("updateParticipantsTable() rows = %v, want %v", rows, want)
	}
}

func Test_rebuildSessionsTable(t *testing.T) {
	dir, err := ioutil.TempDir("", "testtables")
	check(err)
	defer os.RemoveAll(dir)

	// Two session directories on disk, the table has to mirror them.
	check(os.MkdirAll(filepath.Join(dir, "sub-01", "ses-02"), 0755))
	check(os.MkdirAll(filepath.Join(dir, "sub-01", "ses-01"), 0755))
	check(rebuildSessionsTable(dir, "01"))

	header, rows, err := readTable(filepath.Join(dir, "sub-01", "sub-01_sessions.tsv"))
	check(err)
	if !reflect.DeepEqual(header, []string{"session_id"}) {
		t.Errorf("rebuildSessionsTable() header = %v, want %v", header, []string{"session_id"})
	}
	if !reflect.DeepEqual(rows, [][]string{{"01"}, {"02"}}) {
		t.Errorf("rebuildSessionsTable() rows = %v, want %v", rows, [][]string{{"01"}, {"02"}})
	}

	// Removing a session directory removes its row on the next rebuild.
	check(os.RemoveAll(filepath.Join(dir, "sub-01", "ses-02")))
	check(rebuildSessionsTable(dir, "01"))
	_, rows, err = readTable(filepath.Join(dir, "sub-01", "sub-01_sessions.tsv"))
	check(err)
	if !reflect.DeepEqual(rows, [][]string{{"01"}}) {
		t.Errorf("rebuildSessionsTable() rows = %v, want %v", rows, [][]string{{"01"}})
	}
}
