package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type convertOptions struct {
	Subject      string
	Session      string
	PetDir       string
	BidsDir      string
	MicapipeDir  string
	PetJSON      string
	Force        bool
	RunValidator bool
}

// findNativeproT1 looks for the micapipe space-nativepro T1w of a subject
// and returns the path without the .json extension, "" if not found.
// micapipe stores the anatomical workup under ses-01.
func findNativeproT1(micapipeDir string, subject string) string {
	pattern := filepath.Join(micapipeDir, "sub-"+subject, "ses-01", "anat", "*_space-nativepro_T1w.json")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0][:len(matches[0])-len(".json")]
}

// runConvert converts the ECAT source of one subject and session into the
// BIDS dataset, copies the anatomical reference from micapipe and updates
// the dataset-level tables.
func runConvert(config Config, opts convertOptions) {
	subject := normalizeLabel(opts.Subject, "sub")
	session := normalizeLabel(opts.Session, "ses")
	petDir := mustAbs(opts.PetDir)
	bidsDir := mustAbs(opts.BidsDir)
	subjectDir := filepath.Join(bidsDir, "sub-"+subject, "ses-"+session)

	banner("ECAT to BIDS conversion", [][2]string{
		{"Subject", subject},
		{"Session", session},
		{"Source directory", petDir},
		{"BIDS subject directory", subjectDir},
		{"micapipe directory", opts.MicapipeDir},
	})

	if opts.Force {
		os.RemoveAll(subjectDir)
	}
	if !isDirectory(petDir) {
		errorMessage(fmt.Sprintf("Input directory does not exist: %s", petDir))
		os.Exit(1)
	}
	var t1Base string
	if opts.MicapipeDir == "" {
		warning("no micapipe directory configured, skipping the T1w copy")
	} else {
		t1Base = findNativeproT1(opts.MicapipeDir, subject)
		if t1Base == "" {
			warning(fmt.Sprintf("Subject %s_%s does NOT have a T1", subject, session))
		}
	}
	if isDirectory(subjectDir) {
		errorMessage(fmt.Sprintf("Output directory already exists. Use -force to overwrite: %s", subjectDir))
		os.Exit(1)
	}

	start := time.Now()
	check(makeSubjectDirs(subjectDir))
	logDir := filepath.Join(bidsDir, ".petpipe", "log")

	info("Creating NIFTIS from source ECAT")
	petName, err := buildPetName(map[string]interface{}{
		"sub": subject, "ses": session, "trc": "mk6240", "rec": "acdyn",
	})
	check(err)
	sidecarPath := opts.PetJSON
	if sidecarPath == "" {
		// the curated subject sidecar carries hand-entered values such as
		// the injection time, keep user edits between runs
		sidecarPath = filepath.Join(bidsDir, ".petpipe", "subject_trc-MK6240_pet.json")
		createStub(sidecarPath, subjectTracerSidecar)
	}
	petOutDir := filepath.Join(subjectDir, "pet")
	check(convertEcatToBIDS(filepath.Join(petDir, "*EM_4D_MC01.v"), petName, petOutDir, sidecarPath, logDir))

	txPattern := filepath.Join(petDir, "Transmission", "*TX.v")
	if matches, _ := filepath.Glob(txPattern); len(matches) == 0 {
		warning(fmt.Sprintf("No transmission scan found under %s", txPattern))
	} else {
		txName, err := buildPetName(map[string]interface{}{
			"sub": subject, "ses": session, "desc": "LinearAtenuationMap",
		})
		check(err)
		check(convertEcatToBIDS(txPattern, txName, petOutDir, "", logDir))
	}

	if t1Base != "" {
		info("Copying the T1w from micapipe")
		t1Name, err := buildAnatName(map[string]interface{}{"sub": subject, "ses": session}, "T1w")
		check(err)
		anatDir := filepath.Join(subjectDir, "anat")
		check(copyFile(t1Base+".nii.gz", filepath.Join(anatDir, t1Name+".nii.gz")))
		check(copyFile(t1Base+".json", filepath.Join(anatDir, t1Name+".json")))
	}

	info("Writing BIDS dataset mandatory files")
	check(writeDatasetBoilerplate(bidsDir))
	check(updateParticipantsTable(bidsDir, subject))
	check(rebuildSessionsTable(bidsDir, subject))

	elapsed := reportRuntime("Ecat to BIDS", start)
	check(updateConversionLog(bidsDir, []string{
		subject + "_" + session,
		today(),
		strconv.Itoa(countNiftis(filepath.Join(subjectDir, "anat"))),
		strconv.Itoa(countNiftis(filepath.Join(subjectDir, "pet"))),
		petDir,
		currentUser(config),
		elapsed,
	}))

	if opts.RunValidator {
		info("Running the BIDS validator")
		validatorOut := filepath.Join(bidsDir, "bids_validator_output.txt")
		err := runProgram(logDir, nil, "deno",
			"run", "--allow-write", "-ERN", "jsr:@bids/validator", bidsDir,
			"--ignoreWarnings", "--outfile", validatorOut)
		if err != nil {
			warning(fmt.Sprintf("BIDS validation reported issues: %v", err))
		} else {
			os.Chmod(validatorOut, 0777)
		}
	}
	info(fmt.Sprintf("ECAT to BIDS conversion finished for sub-%s ses-%s", subject, session))
}
