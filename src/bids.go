package main

import (
	"fmt"
	"strings"
)

// Entity orders follow the BIDS specification. Names are assembled in
// exactly this order no matter how the caller supplies the entities.
var petEntityOrder = []string{"sub", "ses", "task", "trc", "rec", "run", "desc"}

var anatEntityOrder = []string{"sub", "ses", "task", "acq", "ce", "rec", "run", "echo", "part", "chunk"}

// Suffixes accepted for anatomical images.
var anatSuffixes = []string{"FLAIR", "PDT2", "PDw", "T1w", "T2starw", "T2w", "UNIT1", "angio", "inplaneT1", "inplaneT2"}

func containsString(list []string, value string) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}

// entityValue renders a single entity value. Only strings and ints are
// meaningful in BIDS names, anything else is a caller error.
func entityValue(v interface{}) (string, error) {
	switch value := v.(type) {
	case string:
		return value, nil
	case int:
		return fmt.Sprintf("%d", value), nil
	}
	return "", fmt.Errorf("entity values have to be strings or integers, got %T", v)
}

func buildBIDSName(entities map[string]interface{}, order []string, suffix string) (string, error) {
	for key := range entities {
		if !containsString(order, key) {
			return "", fmt.Errorf("unknown entity %q, valid entities are: %s", key, strings.Join(order, ", "))
		}
	}
	var parts []string
	for _, key := range order {
		v, ok := entities[key]
		if !ok {
			continue
		}
		value, err := entityValue(v)
		if err != nil {
			return "", fmt.Errorf("entity %q: %v", key, err)
		}
		if value == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s-%s", key, value))
	}
	parts = append(parts, suffix)
	return strings.Join(parts, "_"), nil
}

// buildPetName assembles a PET image name such as
// sub-01_ses-01_trc-mk6240_rec-acdyn_pet (no file extension).
func buildPetName(entities map[string]interface{}) (string, error) {
	return buildBIDSName(entities, petEntityOrder, "pet")
}

// buildAnatName assembles an anatomical image name. The suffix has to be
// one of the accepted anatomical suffixes, for example T1w.
func buildAnatName(entities map[string]interface{}, suffix string) (string, error) {
	if !containsString(anatSuffixes, suffix) {
		return "", fmt.Errorf("invalid anatomical suffix %q, valid suffixes are: %s", suffix, strings.Join(anatSuffixes, ", "))
	}
	return buildBIDSName(entities, anatEntityOrder, suffix)
}
