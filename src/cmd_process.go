package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type processOptions struct {
	Subject     string
	Session     string
	BidsDir     string
	MicapipeDir string
	OutDir      string
	TmpDir      string
	Threads     int
	Fwhm        float64
	PvcMask     string
	Force       bool
}

// ANTs reads its thread count from the environment.
func itkThreads(threads int) []string {
	return []string{fmt.Sprintf("ITK_GLOBAL_DEFAULT_NUMBER_OF_THREADS=%d", threads)}
}

func antsAverageArgs(pet4D string, avgOut string) []string {
	return []string{"-d", "3", "-a", pet4D, "-o", avgOut}
}

func antsRegistrationArgs(fixed string, moving string, outPrefix string, threads int) []string {
	return []string{"-d", "3", "-f", fixed, "-m", moving, "-o", outPrefix,
		"-t", "a", "-n", strconv.Itoa(threads), "-p", "f"}
}

func antsApplyArgs(input string, reference string, transform string, output string) []string {
	return []string{"-d", "3", "-i", input, "-r", reference, "-t", transform,
		"-o", output, "-n", "Linear"}
}

func petpvcArgs(input string, mask string, output string, fwhm float64) []string {
	f := strconv.FormatFloat(fwhm, 'f', -1, 64)
	return []string{"-i", input, "-m", mask, "-o", output, "--pvc", "MG",
		"-x", f, "-y", f, "-z", f}
}

// runProcess averages the dynamic PET, registers the average to the
// micapipe nativepro T1w and resamples the PET into that space. With a
// caller-supplied gray matter mask a Muller-Gartner partial volume
// correction runs on top.
func runProcess(config Config, opts processOptions) {
	subject := normalizeLabel(opts.Subject, "sub")
	session := normalizeLabel(opts.Session, "ses")
	bidsDir := mustAbs(opts.BidsDir)
	outRoot := opts.OutDir
	if outRoot == "" {
		outRoot = filepath.Join(bidsDir, "derivatives")
	}
	derivRoot := filepath.Join(mustAbs(outRoot), "petpipe_beta")
	subjectDeriv := filepath.Join(derivRoot, "sub-"+subject, "ses-"+session)

	banner("Processing", [][2]string{
		{"Subject", subject},
		{"Session", session},
		{"BIDS directory", bidsDir},
		{"micapipe directory", opts.MicapipeDir},
		{"Output directory", subjectDeriv},
		{"Threads", strconv.Itoa(opts.Threads)},
	})

	petName, err := buildPetName(map[string]interface{}{
		"sub": subject, "ses": session, "trc": "mk6240", "rec": "acdyn",
	})
	check(err)
	petNii := filepath.Join(bidsDir, "sub-"+subject, "ses-"+session, "pet", petName+".nii.gz")
	if _, err := os.Stat(petNii); err != nil {
		errorMessage(fmt.Sprintf("PET image not found, run the conversion first: %s", petNii))
		os.Exit(1)
	}
	if opts.MicapipeDir == "" {
		errorMessage("No micapipe directory configured, the registration needs the nativepro T1w")
		os.Exit(1)
	}
	t1Base := findNativeproT1(opts.MicapipeDir, subject)
	if t1Base == "" {
		errorMessage(fmt.Sprintf("Subject %s_%s does NOT have a T1", subject, session))
		os.Exit(1)
	}
	if isDirectory(subjectDeriv) {
		if !opts.Force {
			errorMessage(fmt.Sprintf("Output directory already exists. Use -force to overwrite: %s", subjectDeriv))
			os.Exit(1)
		}
		os.RemoveAll(subjectDeriv)
	}

	tmpDir := opts.TmpDir
	if tmpDir == "" {
		tmpDir = config.TempDirectory
	}
	if tmpDir == "" {
		tmpDir, err = ioutil.TempDir("", "petpipe")
		check(err)
		defer os.RemoveAll(tmpDir)
	} else {
		tmpDir = mustAbs(tmpDir)
		check(os.MkdirAll(tmpDir, 0755))
	}

	petOut := filepath.Join(subjectDeriv, "pet")
	xfmOut := filepath.Join(subjectDeriv, "xfm")
	logOut := filepath.Join(subjectDeriv, "log")
	for _, d := range []string{petOut, xfmOut, logOut} {
		check(os.MkdirAll(d, 0755))
	}
	env := itkThreads(opts.Threads)
	start := time.Now()

	info("Averaging the dynamic PET frames")
	avgName, err := buildPetName(map[string]interface{}{
		"sub": subject, "ses": session, "trc": "mk6240", "rec": "acdyn", "desc": "avg",
	})
	check(err)
	avgTmp := filepath.Join(tmpDir, avgName+".nii.gz")
	check(runProgram(logOut, env, "antsMotionCorr", antsAverageArgs(petNii, avgTmp)...))
	if _, err := os.Stat(avgTmp); err != nil {
		exitGracefully(fmt.Errorf("averaging failed, output not generated: %s", avgTmp))
	}

	info("Registering the averaged PET to the nativepro T1w")
	xfmPrefix := filepath.Join(xfmOut, fmt.Sprintf("sub-%s_ses-%s_from-pet_to-nativepro_", subject, session))
	check(runProgram(logOut, env, "antsRegistrationSyN.sh",
		antsRegistrationArgs(t1Base+".nii.gz", avgTmp, xfmPrefix, opts.Threads)...))
	affine := xfmPrefix + "0GenericAffine.mat"
	if _, err := os.Stat(affine); err != nil {
		exitGracefully(fmt.Errorf("registration failed, transform not generated: %s", affine))
	}

	info("Resampling the PET average into nativepro space")
	spacePet := filepath.Join(petOut, fmt.Sprintf("sub-%s_ses-%s_trc-mk6240_rec-acdyn_space-nativepro_pet.nii.gz", subject, session))
	check(runProgram(logOut, env, "antsApplyTransforms",
		antsApplyArgs(avgTmp, t1Base+".nii.gz", affine, spacePet)...))
	if _, err := os.Stat(spacePet); err != nil {
		exitGracefully(fmt.Errorf("resampling failed, output not generated: %s", spacePet))
	}
	check(copyFile(avgTmp, filepath.Join(petOut, avgName+".nii.gz")))

	if opts.PvcMask != "" {
		info("Partial volume correction (Muller-Gartner)")
		mask := mustAbs(opts.PvcMask)
		if _, err := os.Stat(mask); err != nil {
			errorMessage(fmt.Sprintf("PVC mask not found: %s", mask))
			os.Exit(1)
		}
		pvcPet := filepath.Join(petOut, fmt.Sprintf("sub-%s_ses-%s_trc-mk6240_rec-acdyn_space-nativepro_desc-MGpvc_pet.nii.gz", subject, session))
		check(runProgram(logOut, env, "petpvc", petpvcArgs(spacePet, mask, pvcPet, opts.Fwhm)...))
		if _, err := os.Stat(pvcPet); err != nil {
			exitGracefully(fmt.Errorf("partial volume correction failed, output not generated: %s", pvcPet))
		}
	} else {
		info("No -pvc_mask provided, skipping the partial volume correction")
	}

	elapsed := reportRuntime("Processing", start)
	check(updateDerivativesLog(derivRoot, []string{
		subject + "_" + session,
		today(),
		strconv.Itoa(countNiftis(petOut)),
		strconv.Itoa(countFilesWithSuffix(filepath.Join(subjectDeriv, "surf"), ".func.gii")),
		petNii,
		currentUser(config),
		elapsed,
	}))
	info(fmt.Sprintf("Processing finished for sub-%s ses-%s", subject, session))
}
