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

func Test_wbThreads(t *testing.T) {
	got := wbThreads(4)
	want := []string{"OMP_NUM_THREADS=4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("wbThreads() = %v, want %v", got, want)
	}
}

func Test_wbMappingArgs(t *testing.T) {
	got := wbMappingArgs("/deriv/pet.nii.gz", "/hipp/midthickness.surf.gii", "/deriv/surf/pet.func.gii")
	want := []string{"-volume-to-surface-mapping", "/deriv/pet.nii.gz",
		"/hipp/midthickness.surf.gii", "/deriv/surf/pet.func.gii", "-trilinear"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("wbMappingArgs() = %v, want %v", got, want)
	}
}

func Test_wbSmoothingArgs(t *testing.T) {
	got := wbSmoothingArgs("/hipp/midthickness.surf.gii", "/deriv/surf/pet.func.gii", 2, "/deriv/surf/pet_smooth.func.gii")
	want := []string{"-metric-smoothing", "/hipp/midthickness.surf.gii",
		"/deriv/surf/pet.func.gii", "2", "/deriv/surf/pet_smooth.func.gii"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("wbSmoothingArgs() = %v, want %v", got, want)
	}
}

func Test_findHippSurface(t *testing.T) {
	surfName := "sub-01_ses-01_hemi-L_space-T1w_den-0p5mm_label-hipp_midthickness.surf.gii"

	tests := []struct {
		name   string // The name of the test
		layout string // Where the surf directory sits below the temp root
	}{
		// hippunfold writes its results below an inner hippunfold/
		// directory, but users also point us straight at that one.
		{"Hippunfold root", "hippunfold/sub-01/surf"},
		{"Inner output directory", "sub-01/surf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, err := ioutil.TempDir("", "testmap")
			check(err)
			defer os.RemoveAll(dir)

			surfDir := filepath.Join(dir, filepath.FromSlash(tt.layout))
			check(os.MkdirAll(surfDir, 0755))
			check(ioutil.WriteFile(filepath.Join(surfDir, surfName), []byte("x"), 0644))

			got, err := findHippSurface(dir, "01", "01", "L")
			if err != nil {
				t.Errorf("findHippSurface() error = %v", err)
				return
			}
			if got != filepath.Join(surfDir, surfName) {
				t.Errorf("findHippSurface() = %v, want %v", got, filepath.Join(surfDir, surfName))
			}
		})
	}
}

func Test_findHippSurfaceMissing(t *testing.T) {
	dir, err := ioutil.TempDir("", "testmap")
	check(err)
	defer os.RemoveAll(dir)

	_, err = findHippSurface(dir, "01", "01", "R")
	if err == nil {
		t.Errorf("findHippSurface() expected an error for a missing surface")
		return
	}
	if !strings.Contains(err.Error(), "hemi-R") {
		t.Errorf("findHippSurface() error = %v, should name the hemisphere", err)
	}
}
