package main

// Importing all the required packages for our tests to work
import (
	"encoding/json"
	"testing"

	"github.com/suyashkumar/dicom/pkg/tag"
)

func Test_applyOperator(t *testing.T) {
	tests := []struct {
		name     string // The name of the test
		rule     Rule   // Rule under test, the Tag field is irrelevant here
		tagValue string // Value as read from the DICOM header
		want     bool   // whether or not the rule should hold
	}{
		{"Equality matches", Rule{Value: "PT", Operator: "=="}, "PT", true},
		{"Equality rejects", Rule{Value: "PT", Operator: "=="}, "MR", false},
		{"Contains", Rule{Value: "DERIVED", Operator: "contains"}, "DERIVED, SECONDARY", true},
		{"Contains negated", Rule{Value: "DERIVED", Operator: "contains", Negate: "yes"}, "ORIGINAL, PRIMARY", true},
		{"Empty operator is a regular expression", Rule{Value: "EM|[Ee]mission"}, "Tau emission scan", true},
		{"Regular expression rejects", Rule{Value: "EM|[Ee]mission"}, "transmission TX", false},
		{"Less than", Rule{Value: float64(10), Operator: "<"}, "5", true},
		{"Greater than", Rule{Value: float64(10), Operator: ">"}, "5", false},
		{"Approx axial orientation",
			Rule{Value: []interface{}{float64(1), float64(0), float64(0), float64(0), float64(1), float64(0)}, Operator: "approx"},
			"1.000000, 0.000000, 0.000000, 0.000000, 1.000000, 0.000000", true},
		{"Approx within tolerance",
			Rule{Value: []interface{}{float64(1), float64(0)}, Operator: "approx"},
			"1.0002, 0.0001", true},
		{"Approx rejects a tilted orientation",
			Rule{Value: []interface{}{float64(1), float64(0)}, Operator: "approx"},
			"0.9500, 0.3122", false},
		{"Approx rejects a length mismatch",
			Rule{Value: []interface{}{float64(1), float64(0)}, Operator: "approx"},
			"1.0000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := applyOperator(tt.rule, tt.tagValue); got != tt.want {
				t.Errorf("applyOperator() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_ruleTag(t *testing.T) {
	tests := []struct {
		name   string  // The name of the test
		rule   Rule    // Rule carrying the tag reference
		want   tag.Tag // The resolved DICOM tag
		wantOk bool    // whether or not the reference resolves
	}{
		{"Dictionary name", Rule{Tag: []string{"Modality"}}, tag.Modality, true},
		{"Hex pair", Rule{Tag: []string{"0x0008", "0x0060"}}, tag.Modality, true},
		{"Unknown name", Rule{Tag: []string{"NotATagName"}}, tag.Tag{}, false},
		{"Broken hex pair", Rule{Tag: []string{"0x0008", "nope"}}, tag.Tag{}, false},
		{"No tag at all", Rule{Rule: "isPET"}, tag.Tag{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ruleTag(tt.rule)
			if ok != tt.wantOk {
				t.Errorf("ruleTag() ok = %v, want %v", ok, tt.wantOk)
				return
			}
			if got != tt.want {
				t.Errorf("ruleTag() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_embeddedClassifyRules(t *testing.T) {
	// The embedded rule set ships with the binary, a parse error here
	// would silently disable classification.
	var classes Classes
	if err := json.Unmarshal([]byte(classifyRules), &classes); err != nil {
		t.Errorf("could not parse the embedded classifyRules.json: %v", err)
		return
	}
	if len(classes) == 0 {
		t.Errorf("the embedded classifyRules.json contains no classes")
	}
	var found bool
	for _, c := range classes {
		if c.Type == "PET" {
			found = true
			if c.Id == "" {
				t.Errorf("the PET class needs an id so other rules can reference it")
			}
		}
	}
	if !found {
		t.Errorf("the embedded classifyRules.json is missing the PET class")
	}
}
