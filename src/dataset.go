package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// createStub writes str to p unless the file exists already. Used by init
// so user edits to the boilerplate survive.
func createStub(p string, str string) {
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		fmt.Println("This directory already contains a " + filepath.Base(p) + ", don't overwrite. Skip writing...")
	} else {
		err := os.MkdirAll(filepath.Dir(p), 0755)
		if err != nil {
			fmt.Println("Error creating the required directories for ", filepath.Dir(p))
		}
		f, err := os.Create(p)
		check(err)
		defer f.Close()
		_, err = f.WriteString(str)
		check(err)
		f.Sync()
	}
}

func datasetBoilerplate() []struct{ Name, Content string } {
	return []struct{ Name, Content string }{
		{"CITATION.cff", datasetCitation},
		{"dataset_description.json", datasetDescription},
		{".bidsignore", datasetBidsignore},
		{"participants.json", participantsSchema},
		{"trc-mk6240_rec-acdyn_pet.json", tracerSidecar},
		{"README", datasetReadme},
	}
}

// writeDatasetBoilerplate (re-)writes the dataset-level BIDS files. The
// conversion stage calls this on every run, content is owned by the
// pipeline and not meant for manual edits.
func writeDatasetBoilerplate(bidsDir string) error {
	for _, f := range datasetBoilerplate() {
		if err := ioutil.WriteFile(filepath.Join(bidsDir, f.Name), []byte(f.Content), 0644); err != nil {
			return err
		}
	}
	return nil
}

// makeSubjectDirs creates the anat and pet folders for one subject and
// session. MkdirAll is a no-op on existing directories so repeated runs
// are safe.
func makeSubjectDirs(subjectDir string) error {
	for _, sub := range []string{"anat", "pet"} {
		if err := os.MkdirAll(filepath.Join(subjectDir, sub), 0755); err != nil {
			return err
		}
	}
	return nil
}

func countFilesWithSuffix(dir string, suffix string) int {
	var count int
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), suffix) {
			count++
		}
		return nil
	})
	return count
}

func countNiftis(dir string) int {
	return countFilesWithSuffix(dir, ".nii.gz")
}

// listSessions returns the bare session labels (ses- prefix stripped) of
// one subject, sorted.
func listSessions(bidsDir string, subject string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(bidsDir, "sub-"+subject, "ses-*"))
	if err != nil {
		return nil, err
	}
	var sessions []string
	for _, m := range matches {
		if !isDirectory(m) {
			continue
		}
		sessions = append(sessions, filepath.Base(m)[len("ses-"):])
	}
	sort.Strings(sessions)
	return sessions, nil
}

// listSubjects returns the bare subject labels of the dataset, sorted.
func listSubjects(bidsDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(bidsDir, "sub-*"))
	if err != nil {
		return nil, err
	}
	var subjects []string
	for _, m := range matches {
		if !isDirectory(m) {
			continue
		}
		subjects = append(subjects, filepath.Base(m)[len("sub-"):])
	}
	sort.Strings(subjects)
	return subjects, nil
}
