package main

// Importing all the required packages for our tests to work
import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"
)

func Test_normalizeLabel(t *testing.T) {
	tests := []struct {
		name   string // The name of the test
		value  string // Label as passed by the user
		prefix string // BIDS prefix to strip
		want   string // The bare label
	}{
		{"With prefix", "sub-PX001", "sub", "PX001"},
		{"Without prefix", "PX001", "sub", "PX001"},
		{"Session label", "ses-01", "ses", "01"},
		{"Prefix of another entity stays", "ses-01", "sub", "ses-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeLabel(tt.value, tt.prefix); got != tt.want {
				t.Errorf("normalizeLabel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_minutesString(t *testing.T) {
	tests := []struct {
		name string        // The name of the test
		d    time.Duration // Measured runtime
		want string        // The value stored in the log table
	}{
		{"Seconds", 90 * time.Second, "1.500"},
		{"Sub-second", 600 * time.Millisecond, "0.010"},
		{"Zero", 0, "0.000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := minutesString(tt.d); got != tt.want {
				t.Errorf("minutesString() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_today(t *testing.T) {
	// The log tables store dates as month.day.year.
	got := today()
	if _, err := time.Parse("01.02.2006", got); err != nil {
		t.Errorf("today() = %v, not in the 01.02.2006 layout", got)
	}
}

func Test_currentUser(t *testing.T) {
	var config Config
	config.Author.Name = "Some Author"
	if got := currentUser(config); got != "Some Author" {
		t.Errorf("currentUser() = %v, want the configured author", got)
	}
	config.Author.Name = ""
	if got := currentUser(config); got != os.Getenv("USER") {
		t.Errorf("currentUser() = %v, want the USER environment", got)
	}
}

func Test_classifyEcatName(t *testing.T) {
	tests := []struct {
		name string // The name of the test
		file string // ECAT file name as delivered by the scanner
		want string // Expected class
	}{
		{"Transmission scan", "px001-tau-2022.05.11-TX.v", "transmission"},
		{"Emission scan", "px001-tau-2022.05.11-EM.v", "emission"},
		{"Unrelated file", "px001-notes.v", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyEcatName(tt.file); got != tt.want {
				t.Errorf("classifyEcatName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_largestCommonPath(t *testing.T) {
	sep := string(os.PathSeparator)
	tests := []struct {
		name string // The name of the test
		a    string // First path
		b    string // Second path
		want string // Longest shared leading path
	}{
		{"Shared study folder",
			strings.Join([]string{"", "data", "study", "sub-01"}, sep),
			strings.Join([]string{"", "data", "study", "sub-02"}, sep),
			strings.Join([]string{"", "data", "study"}, sep)},
		{"Identical paths",
			strings.Join([]string{"", "data"}, sep),
			strings.Join([]string{"", "data"}, sep),
			strings.Join([]string{"", "data"}, sep)},
		{"Nothing in common", "a" + sep + "b", "c" + sep + "d", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := largestCommonPath(tt.a, tt.b); got != tt.want {
				t.Errorf("largestCommonPath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_uniqueStrings(t *testing.T) {
	got := uniqueStrings([]string{"EM", "TX", "EM", "EM"})
	sort.Strings(got)
	want := []string{"EM", "TX"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("uniqueStrings() = %v, want %v", got, want)
	}
}

func Test_copyFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "testutil")
	check(err)
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "sub-01_T1w.nii.gz")
	dst := filepath.Join(dir, "copy.nii.gz")
	check(ioutil.WriteFile(src, []byte("payload"), 0644))
	check(copyFile(src, dst))
	content, err := ioutil.ReadFile(dst)
	check(err)
	if string(content) != "payload" {
		t.Errorf("copyFile() copied %q, want %q", content, "payload")
	}

	if err := copyFile(filepath.Join(dir, "missing"), dst); err == nil {
		t.Errorf("copyFile() expected an error for a missing source")
	}
}

func Test_processingTimes(t *testing.T) {
	dir, err := ioutil.TempDir("", "testutil")
	check(err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "participants_bic2bids.tsv")
	check(upsertTableRow(path, conversionLogHeader, []string{"sub-01_ses-01", "05.02.2025", "1", "1", "/data/a", "me", "4.25"}))
	check(upsertTableRow(path, conversionLogHeader, []string{"sub-02_ses-01", "05.02.2025", "1", "1", "/data/b", "me", "3.75"}))
	// Rows without a parsable time are skipped.
	check(upsertTableRow(path, conversionLogHeader, []string{"sub-03_ses-01", "05.02.2025", "1", "1", "/data/c", "me", "n/a"}))

	got := processingTimes(path)
	want := []float64{4.25, 3.75}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("processingTimes() = %v, want %v", got, want)
	}

	if got := processingTimes(filepath.Join(dir, "missing.tsv")); got != nil {
		t.Errorf("processingTimes() = %v, want nil for a missing table", got)
	}
}
