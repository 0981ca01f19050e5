package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/natefinch/atomic"
)

// mergeSidecars folds the key/value pairs of existingPath into the JSON
// sidecar at newPath and writes the result back to newPath. On key
// conflicts the existing sidecar wins, dcm2niix regenerates its values on
// every conversion while the curated ones carry manual entries such as the
// injection time. A missing existingPath leaves newPath unchanged, a
// missing newPath is an error because the conversion should have written it.
func mergeSidecars(newPath string, existingPath string) error {
	existing := make(map[string]interface{})
	if content, err := ioutil.ReadFile(existingPath); err == nil {
		if err := json.Unmarshal(content, &existing); err != nil {
			return fmt.Errorf("could not parse %s: %v", existingPath, err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	content, err := ioutil.ReadFile(newPath)
	if err != nil {
		return fmt.Errorf("sidecar not found, expected the conversion to create %s", newPath)
	}
	merged := make(map[string]interface{})
	if err := json.Unmarshal(content, &merged); err != nil {
		return fmt.Errorf("could not parse %s: %v", newPath, err)
	}
	for key, value := range existing {
		merged[key] = value
	}

	payload, err := json.MarshalIndent(merged, "", "    ")
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(newPath, bytes.NewReader(payload)); err != nil {
		return err
	}
	fmt.Printf("Updated JSON saved to: %s\n", newPath)
	return nil
}
