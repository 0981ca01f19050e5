package main

// Importing all the required packages for our tests to work
import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func Test_writeDatasetBoilerplate(t *testing.T) {
	dir, err := ioutil.TempDir("", "testdataset")
	check(err)
	defer os.RemoveAll(dir)

	check(writeDatasetBoilerplate(dir))
	for _, f := range datasetBoilerplate() {
		content, err := ioutil.ReadFile(filepath.Join(dir, f.Name))
		if err != nil {
			t.Errorf("writeDatasetBoilerplate() did not create %s", f.Name)
			continue
		}
		if string(content) != f.Content {
			t.Errorf("writeDatasetBoilerplate() wrote wrong content for %s", f.Name)
		}
	}

	// The files are owned by the pipeline, a re-run replaces manual edits.
	readme := filepath.Join(dir, "README")
	check(ioutil.WriteFile(readme, []byte("edited by hand"), 0644))
	check(writeDatasetBoilerplate(dir))
	content, err := ioutil.ReadFile(readme)
	check(err)
	if string(content) != datasetReadme {
		t.Errorf("writeDatasetBoilerplate() should overwrite the README on re-runs")
	}
}

func Test_createStub(t *testing.T) {
	dir, err := ioutil.TempDir("", "testdataset")
	check(err)
	defer os.RemoveAll(dir)

	// createStub keeps whatever is there already, init must not clobber
	// user edits.
	path := filepath.Join(dir, ".petpipe", "classifyRules.json")
	createStub(path, "first")
	createStub(path, "second")
	content, err := ioutil.ReadFile(path)
	check(err)
	if string(content) != "first" {
		t.Errorf("createStub() = %v, want %v", string(content), "first")
	}
}

func Test_makeSubjectDirs(t *testing.T) {
	dir, err := ioutil.TempDir("", "testdataset")
	check(err)
	defer os.RemoveAll(dir)

	subjectDir := filepath.Join(dir, "sub-01", "ses-01")
	check(makeSubjectDirs(subjectDir))
	// Running it again on the existing tree has to be a no-op.
	check(makeSubjectDirs(subjectDir))
	for _, sub := range []string{"anat", "pet"} {
		if !isDirectory(filepath.Join(subjectDir, sub)) {
			t.Errorf("makeSubjectDirs() did not create %s", sub)
		}
	}
}

func Test_countNiftis(t *testing.T) {
	dir, err := ioutil.TempDir("", "testdataset")
	check(err)
	defer os.RemoveAll(dir)

	check(os.MkdirAll(filepath.Join(dir, "pet"), 0755))
	check(ioutil.WriteFile(filepath.Join(dir, "pet", "sub-01_pet.nii.gz"), []byte("x"), 0644))
	check(ioutil.WriteFile(filepath.Join(dir, "pet", "sub-01_pet.json"), []byte("{}"), 0644))
	check(ioutil.WriteFile(filepath.Join(dir, "sub-01_T1w.nii.gz"), []byte("x"), 0644))

	if got := countNiftis(dir); got != 2 {
		t.Errorf("countNiftis() = %v, want %v", got, 2)
	}
	if got := countFilesWithSuffix(dir, ".json"); got != 1 {
		t.Errorf("countFilesWithSuffix() = %v, want %v", got, 1)
	}
}

func Test_listSubjects(t *testing.T) {
	dir, err := ioutil.TempDir("", "testdataset")
	check(err)
	defer os.RemoveAll(dir)

	check(os.MkdirAll(filepath.Join(dir, "sub-PX003"), 0755))
	check(os.MkdirAll(filepath.Join(dir, "sub-01"), 0755))
	check(os.MkdirAll(filepath.Join(dir, "derivatives"), 0755))
	// A stray file must not show up as a subject.
	check(ioutil.WriteFile(filepath.Join(dir, "sub-02_scans.tsv"), []byte(""), 0644))

	got, err := listSubjects(dir)
	check(err)
	want := []string{"01", "PX003"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("listSubjects() = %v, want %v", got, want)
	}
}

func Test_listSessions(t *testing.T) {
	dir, err := ioutil.TempDir("", "testdataset")
	check(err)
	defer os.RemoveAll(dir)

	check(os.MkdirAll(filepath.Join(dir, "sub-01", "ses-02"), 0755))
	check(os.MkdirAll(filepath.Join(dir, "sub-01", "ses-01"), 0755))
	check(ioutil.WriteFile(filepath.Join(dir, "sub-01", "ses-03.txt"), []byte(""), 0644))

	got, err := listSessions(dir, "01")
	check(err)
	want := []string{"01", "02"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("listSessions() = %v, want %v", got, want)
	}

	// A subject without sessions yields an empty list, not an error.
	got, err = listSessions(dir, "99")
	check(err)
	if len(got) != 0 {
		t.Errorf("listSessions() = %v, want an empty list", got)
	}
}
