package main

// Importing all the required packages for our tests to work
import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func Test_dcm2niixArgs(t *testing.T) {
	got := dcm2niixArgs("/bids/sub-01/ses-01/pet", "sub-01_ses-01_trc-mk6240_rec-acdyn_pet", "/raw/scan.v")
	want := []string{"-b", "y", "-v", "n", "-z", "y",
		"-o", "/bids/sub-01/ses-01/pet",
		"-f", "sub-01_ses-01_trc-mk6240_rec-acdyn_pet",
		"/raw/scan.v"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dcm2niixArgs() = %v, want %v", got, want)
	}
}

func Test_resolveEcatSource(t *testing.T) {
	dir, err := ioutil.TempDir("", "testconvert")
	check(err)
	defer os.RemoveAll(dir)
	check(ioutil.WriteFile(filepath.Join(dir, "scan-a.v"), []byte("x"), 0644))
	check(ioutil.WriteFile(filepath.Join(dir, "scan-b.v"), []byte("x"), 0644))

	tests := []struct {
		name    string // The name of the test
		pattern string // Source glob relative to the temp directory
		want    string // Expected match relative to the temp directory
		wantErr bool   // whether or not we want an error
	}{
		{"Exact file", "scan-a.v", "scan-a.v", false},
		{"Glob with one winner among many", "scan-*.v", "scan-a.v", false},
		{"No match", "*.dcm", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveEcatSource(filepath.Join(dir, tt.pattern))
			if (err != nil) != tt.wantErr {
				t.Errorf("resolveEcatSource() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				if !strings.Contains(err.Error(), "no ECAT file matches") {
					t.Errorf("resolveEcatSource() error = %v, want it to say no ECAT file matches", err)
				}
				return
			}
			if got != filepath.Join(dir, tt.want) {
				t.Errorf("resolveEcatSource() = %v, want %v", got, filepath.Join(dir, tt.want))
			}
		})
	}
}
