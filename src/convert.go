package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// dcm2niixArgs builds the conversion command line: BIDS sidecar on, quiet,
// gzipped NIfTI output.
func dcm2niixArgs(outputDir string, outBase string, input string) []string {
	return []string{"-b", "y", "-v", "n", "-z", "y", "-o", outputDir, "-f", outBase, input}
}

// resolveEcatSource expands the source glob. Zero matches is an error,
// more than one warns and uses the first (filepath.Glob sorts lexically).
func resolveEcatSource(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("bad source pattern %s: %v", pattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no ECAT file matches %s", pattern)
	}
	if len(matches) > 1 {
		warning(fmt.Sprintf("%d files match %s, using %s", len(matches), pattern, matches[0]))
	}
	return matches[0], nil
}

// convertEcatToBIDS runs dcm2niix on the ECAT file matching pattern and
// verifies that the expected NIfTI was written, a missing output means the
// conversion failed no matter what dcm2niix returned. With a non-empty
// sidecarPath the generated JSON sidecar is merged with the curated one.
func convertEcatToBIDS(pattern string, outBase string, outputDir string, sidecarPath string, logDir string) error {
	input, err := resolveEcatSource(pattern)
	if err != nil {
		return err
	}
	if err := runProgram(logDir, nil, "dcm2niix", dcm2niixArgs(outputDir, outBase, input)...); err != nil {
		return err
	}
	niftiFile := filepath.Join(outputDir, outBase+".nii.gz")
	if _, err := os.Stat(niftiFile); err != nil {
		return fmt.Errorf("conversion failed, NIfTI file not generated: %s", niftiFile)
	}
	if sidecarPath != "" {
		return mergeSidecars(filepath.Join(outputDir, outBase+".json"), sidecarPath)
	}
	return nil
}
