package main

// Importing all the required packages for our tests to work
import (
	"strings"
	"testing"
)

func Test_buildPetName(t *testing.T) {
	// Each test supplies the entities in a different order, the resulting
	// name has to come out in the canonical order every time.
	tests := []struct {
		name     string                 // The name of the test
		entities map[string]interface{} // The entities handed to the builder
		want     string                 // The file name we expect back
		wantErr  bool                   // whether or not we want an error
	}{
		{"Full acquisition name",
			map[string]interface{}{"sub": "01", "ses": "01", "trc": "mk6240", "rec": "acdyn"},
			"sub-01_ses-01_trc-mk6240_rec-acdyn_pet", false},
		{"Entities in reverse order",
			map[string]interface{}{"rec": "acdyn", "trc": "mk6240", "ses": "01", "sub": "01"},
			"sub-01_ses-01_trc-mk6240_rec-acdyn_pet", false},
		{"Integer run index",
			map[string]interface{}{"sub": "01", "run": 2},
			"sub-01_run-2_pet", false},
		{"Empty values are skipped",
			map[string]interface{}{"sub": "01", "ses": "", "desc": "mc"},
			"sub-01_desc-mc_pet", false},
		{"Only the suffix",
			map[string]interface{}{},
			"pet", false},
		{"Unknown entity",
			map[string]interface{}{"sub": "01", "tracer": "mk6240"},
			"", true},
		{"Unsupported value type",
			map[string]interface{}{"sub": "01", "run": 2.5},
			"", true},
	}
	for _, tt := range tests {
		// Running each test with the name declared on the test slice
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildPetName(tt.entities)
			if (err != nil) != tt.wantErr {
				t.Errorf("buildPetName() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("buildPetName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_buildAnatName(t *testing.T) {
	tests := []struct {
		name     string                 // The name of the test
		entities map[string]interface{} // The entities handed to the builder
		suffix   string                 // The anatomical suffix
		want     string                 // The file name we expect back
		wantErr  bool                   // whether or not we want an error
	}{
		{"T1w with session",
			map[string]interface{}{"sub": "01", "ses": "01"}, "T1w",
			"sub-01_ses-01_T1w", false},
		{"Echo and part keep their place",
			map[string]interface{}{"part": "mag", "echo": 1, "sub": "01"}, "T2w",
			"sub-01_echo-1_part-mag_T2w", false},
		{"Acquisition label",
			map[string]interface{}{"sub": "01", "acq": "mprage"}, "T1w",
			"sub-01_acq-mprage_T1w", false},
		{"Invalid suffix",
			map[string]interface{}{"sub": "01"}, "pet",
			"", true},
		{"Tracer is not an anatomical entity",
			map[string]interface{}{"sub": "01", "trc": "mk6240"}, "T1w",
			"", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildAnatName(tt.entities, tt.suffix)
			if (err != nil) != tt.wantErr {
				t.Errorf("buildAnatName() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("buildAnatName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_buildAnatNameMessage(t *testing.T) {
	// The error for a bad suffix should list the accepted ones so the
	// caller does not have to look them up.
	_, err := buildAnatName(map[string]interface{}{"sub": "01"}, "bold")
	if err == nil {
		t.Errorf("buildAnatName() expected an error for suffix bold")
		return
	}
	if !strings.Contains(err.Error(), "T1w") {
		t.Errorf("buildAnatName() error = %v, should list the valid suffixes", err)
	}
}
