package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
)

const errorConfigFile = `this directory is not a petpipe dataset. Change into a dataset directory or create one with

	petpipe init <dataset>

`

// AuthorInfo is recorded in the processing log and the dataset boilerplate.
type AuthorInfo struct {
	Name  string
	Email string
}

// ViewerInfo controls the ASCII preview of raw DICOM series.
type ViewerInfo struct {
	TextColor string
	Clip      bool
}

// EcatInfo describes one ECAT7 file found while scanning a source directory.
type EcatInfo struct {
	Path      string
	SizeBytes int64
	Kind      string // emission, transmission or unknown
}

// DataInfo caches the last scan of a raw data directory.
type DataInfo struct {
	Path     string
	Ecat     []EcatInfo
	DataInfo map[string]map[string]SeriesInfo
}

// Config is stored as JSON in <dataset>/.petpipe/config. Every pipeline
// stage reads its defaults from here so no behavior depends on ambient
// environment state.
type Config struct {
	Date           string
	Author         AuthorInfo
	MicapipeDir    string
	DerivativesDir string
	TempDirectory  string
	Threads        int
	SmoothKernel   int
	Viewer         ViewerInfo
	Data           DataInfo
}

func configPath(datasetDir string) string {
	return filepath.Join(datasetDir, ".petpipe", "config")
}

func readConfig(path string) (Config, error) {
	config := Config{}
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return config, fmt.Errorf("%s", errorConfigFile)
	}
	// the config can contain author information, keep it private
	if fi.Mode().Perm()&0077 != 0 {
		if err := os.Chmod(path, 0600); err == nil {
			warning(fmt.Sprintf("adjusted permissions of %s to 0600", path))
		}
	}
	fileContent, err := ioutil.ReadFile(path)
	if err != nil {
		return config, err
	}
	if err := json.Unmarshal(fileContent, &config); err != nil {
		return config, fmt.Errorf("could not parse %s: %v", path, err)
	}
	return config, nil
}

// writeConfig stores the config in the dataset's .petpipe directory.
func (config Config) writeConfig(datasetDir string) bool {
	dirPath := filepath.Join(datasetDir, ".petpipe")
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		exitGracefully(fmt.Errorf("could not create directory %s", dirPath))
	}
	payload, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return false
	}
	if err := ioutil.WriteFile(filepath.Join(dirPath, "config"), payload, 0600); err != nil {
		return false
	}
	return true
}
