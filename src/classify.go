package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

//go:embed templates/classifyRules.json
var classifyRules string

// Classes and Rule mirror the schema of templates/classifyRules.json. A
// rule either names a DICOM tag (by dictionary name or as a group/element
// hex pair), references another class by id, or checks the ClassifyType
// pseudo tag against the classes found so far.
type Classes []Class

type Class struct {
	Type        string `json:"type"`
	Id          string `json:"id"`
	Description string `json:"description"`
	Rules       []Rule `json:"rules"`
}

type Rule struct {
	Tag      []string    `json:"tag"`
	Value    interface{} `json:"value"` // a string, a number or an array of numbers
	Operator string      `json:"operator"`
	Negate   string      `json:"negate"`
	Rule     string      `json:"rule"`
}

var (
	classifyOnce    sync.Once
	classifications Classes
)

func ruleTag(r Rule) (tag.Tag, bool) {
	if len(r.Tag) == 1 {
		info, err := tag.FindByName(r.Tag[0])
		if err == nil {
			return info.Tag, true
		}
	} else if len(r.Tag) == 2 {
		group, err1 := strconv.ParseInt(r.Tag[0], 0, 32)
		element, err2 := strconv.ParseInt(r.Tag[1], 0, 32)
		if err1 == nil && err2 == nil {
			return tag.Tag{Group: uint16(group), Element: uint16(element)}, true
		}
	}
	return tag.Tag{}, false
}

// tagValueString renders the value of a tag as a comma separated string,
// the form the rule operators work on.
func tagValueString(dataset dicom.Dataset, t tag.Tag) (string, bool) {
	dataElement, err := dataset.FindElementByTag(t)
	if err != nil {
		return "", false
	}
	switch dataElement.Value.ValueType() {
	case dicom.Strings:
		return strings.Join(dataElement.Value.GetValue().([]string), ", "), true
	case dicom.Ints:
		var parts []string
		for _, v := range dataElement.Value.GetValue().([]int) {
			parts = append(parts, fmt.Sprintf("%d", v))
		}
		return strings.Join(parts, ", "), true
	case dicom.Floats:
		var parts []string
		for _, v := range dataElement.Value.GetValue().([]float64) {
			parts = append(parts, fmt.Sprintf("%f", v))
		}
		return strings.Join(parts, ", "), true
	}
	return "", false
}

func applyOperator(r Rule, tagValue string) bool {
	var valueString string
	var valueArray []float32
	switch obj := r.Value.(type) {
	case string:
		valueString = obj
	case float64:
		valueString = fmt.Sprintf("%g", obj)
		valueArray = []float32{float32(obj)}
	case []interface{}:
		for _, v := range obj {
			switch vv := v.(type) {
			case float64:
				valueArray = append(valueArray, float32(vv))
			case string:
				if f, err := strconv.ParseFloat(vv, 32); err == nil {
					valueArray = append(valueArray, float32(f))
				}
			}
		}
	default:
		fmt.Printf("Error, unknown value type in classify rule: %T\n", r.Value)
	}

	var thisCheck bool = true // find all the ways the rule does not apply
	switch r.Operator {
	case "contains":
		if !strings.Contains(tagValue, valueString) {
			thisCheck = false
		}
	case "==":
		if tagValue != valueString {
			thisCheck = false
		}
	case "":
		// an empty operator means regular expression match
		rRegex, err := regexp.Compile(valueString)
		if err != nil || !rRegex.MatchString(tagValue) {
			thisCheck = false
		}
	case "<":
		var1, err1 := strconv.ParseFloat(tagValue, 32)
		var2, err2 := strconv.ParseFloat(valueString, 32)
		if err1 != nil || err2 != nil || var1 >= var2 {
			thisCheck = false
		}
	case ">":
		var1, err1 := strconv.ParseFloat(tagValue, 32)
		var2, err2 := strconv.ParseFloat(valueString, 32)
		if err1 != nil || err2 != nil || var1 <= var2 {
			thisCheck = false
		}
	case "approx":
		var tagArray []float32
		for _, v := range strings.Split(tagValue, ", ") {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 32); err == nil {
				tagArray = append(tagArray, float32(f))
			}
		}
		if len(tagArray) != len(valueArray) {
			thisCheck = false
		}
		var e float32 = 1e-3
		for i := 0; i < len(tagArray) && i < len(valueArray); i++ {
			if math.Abs(float64(tagArray[i]-valueArray[i])) > float64(e) {
				thisCheck = false
				break
			}
		}
	default:
		fmt.Println("ERROR UNKNOWN OPERATOR: ", r.Operator)
	}

	if r.Negate == "yes" {
		thisCheck = !thisCheck
	}
	return thisCheck
}

// evalRules is true if every rule in ruleList holds for the dataset. A
// tag that is absent from the dataset does not fail its rule.
func evalRules(dataset dicom.Dataset, ruleList []Rule, classifications Classes, typesList []string) bool {
	for _, r := range ruleList {
		if len(r.Tag) == 0 && r.Rule != "" {
			var referenced []Rule
			var found bool = false
			for _, v := range classifications {
				if v.Id == r.Rule {
					referenced = v.Rules
					found = true
					break
				}
			}
			if !found {
				fmt.Println("We did not find the referenced rule for", r.Rule)
				continue
			}
			if !evalRules(dataset, referenced, classifications, typesList) {
				return false
			}
			continue
		}
		if len(r.Tag) == 1 && r.Tag[0] == "ClassifyType" {
			if !applyOperator(r, strings.Join(typesList, ", ")) {
				return false
			}
			continue
		}
		t, ok := ruleTag(r)
		if !ok {
			continue
		}
		tagValue, ok := tagValueString(dataset, t)
		if !ok {
			continue
		}
		if !applyOperator(r, tagValue) {
			return false
		}
	}
	return true
}

// ClassifyDICOM matches the embedded rule set against one DICOM dataset
// and returns the matching class names, for example PET, T1w or Localizer.
func ClassifyDICOM(dataset dicom.Dataset) []string {
	classifyOnce.Do(func() {
		if err := json.Unmarshal([]byte(classifyRules), &classifications); err != nil {
			fmt.Println("could not parse classifyRules.json:", err)
		}
	})
	var classes []string
	for _, v := range classifications {
		// rules can reference other rules, evalRules recurses for those
		if evalRules(dataset, v.Rules, classifications, classes) {
			classes = append(classes, v.Type)
		}
	}
	return classes
}
