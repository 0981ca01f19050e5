package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type mapOptions struct {
	Subject string
	Session string
	OutDir  string
	HippDir string
	Threads int
	Smooth  int
	Force   bool
}

// wb_command reads its thread count from the environment.
func wbThreads(threads int) []string {
	return []string{fmt.Sprintf("OMP_NUM_THREADS=%d", threads)}
}

func wbMappingArgs(volume string, surface string, metricOut string) []string {
	return []string{"-volume-to-surface-mapping", volume, surface, metricOut, "-trilinear"}
}

func wbSmoothingArgs(surface string, metricIn string, kernel int, metricOut string) []string {
	return []string{"-metric-smoothing", surface, metricIn, strconv.Itoa(kernel), metricOut}
}

// findHippSurface locates the hippunfold midthickness surface of one
// hemisphere. Both the hippunfold root and its inner hippunfold/ output
// directory are accepted, the density is taken as generated (den-0p5mm by
// default in hippunfold).
func findHippSurface(hippDir string, subject string, session string, hemi string) (string, error) {
	name := fmt.Sprintf("sub-%s_ses-%s_hemi-%s_space-T1w_den-*_label-hipp_midthickness.surf.gii",
		subject, session, hemi)
	for _, base := range []string{filepath.Join(hippDir, "hippunfold"), hippDir} {
		matches, err := filepath.Glob(filepath.Join(base, "sub-"+subject, "surf", name))
		if err == nil && len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("no hippocampal midthickness surface for hemi-%s under %s", hemi, hippDir)
}

// runMap samples the nativepro-space PET onto the hippocampal
// midthickness surfaces from hippunfold and smooths the resulting metric
// along the surface.
func runMap(config Config, opts mapOptions) {
	subject := normalizeLabel(opts.Subject, "sub")
	session := normalizeLabel(opts.Session, "ses")
	derivRoot := filepath.Join(mustAbs(opts.OutDir), "petpipe_beta")
	subjectDeriv := filepath.Join(derivRoot, "sub-"+subject, "ses-"+session)
	surfDir := filepath.Join(subjectDeriv, "surf")

	banner("Surface mapping", [][2]string{
		{"Subject", subject},
		{"Session", session},
		{"Output directory", subjectDeriv},
		{"Hippunfold directory", opts.HippDir},
		{"Smoothing kernel size", strconv.Itoa(opts.Smooth)},
		{"Threads", strconv.Itoa(opts.Threads)},
	})

	if !isDirectory(opts.HippDir) {
		errorMessage(fmt.Sprintf("Hippunfold directory does not exist: %s", opts.HippDir))
		os.Exit(1)
	}
	if !isDirectory(derivRoot) {
		errorMessage(fmt.Sprintf("Output directory does not exist, run the processing stage first: %s", derivRoot))
		os.Exit(1)
	}
	spacePet := filepath.Join(subjectDeriv, "pet",
		fmt.Sprintf("sub-%s_ses-%s_trc-mk6240_rec-acdyn_space-nativepro_pet.nii.gz", subject, session))
	if _, err := os.Stat(spacePet); err != nil {
		errorMessage(fmt.Sprintf("PET in nativepro space not found, run the processing stage first: %s", spacePet))
		os.Exit(1)
	}
	if isDirectory(surfDir) {
		if !opts.Force {
			errorMessage(fmt.Sprintf("Output directory already exists. Use -force to overwrite: %s", surfDir))
			os.Exit(1)
		}
		os.RemoveAll(surfDir)
	}

	logOut := filepath.Join(subjectDeriv, "log")
	check(os.MkdirAll(surfDir, 0755))
	check(os.MkdirAll(logOut, 0755))
	env := wbThreads(opts.Threads)
	start := time.Now()

	for _, hemi := range []string{"L", "R"} {
		surface, err := findHippSurface(opts.HippDir, subject, session, hemi)
		check(err)

		info(fmt.Sprintf("Mapping the PET to the hemi-%s hippocampal surface", hemi))
		metric := filepath.Join(surfDir,
			fmt.Sprintf("sub-%s_ses-%s_hemi-%s_space-T1w_label-hipp_trc-mk6240_pet.func.gii", subject, session, hemi))
		check(runProgram(logOut, env, "wb_command", wbMappingArgs(spacePet, surface, metric)...))
		if _, err := os.Stat(metric); err != nil {
			exitGracefully(fmt.Errorf("surface mapping failed, output not generated: %s", metric))
		}

		info(fmt.Sprintf("Smoothing the hemi-%s surface metric (%d mm)", hemi, opts.Smooth))
		smoothed := filepath.Join(surfDir,
			fmt.Sprintf("sub-%s_ses-%s_hemi-%s_space-T1w_label-hipp_smooth-%dmm_trc-mk6240_pet.func.gii",
				subject, session, hemi, opts.Smooth))
		check(runProgram(logOut, env, "wb_command", wbSmoothingArgs(surface, metric, opts.Smooth, smoothed)...))
		if _, err := os.Stat(smoothed); err != nil {
			exitGracefully(fmt.Errorf("metric smoothing failed, output not generated: %s", smoothed))
		}
	}

	elapsed := reportRuntime("Surface mapping", start)
	check(updateDerivativesLog(derivRoot, []string{
		subject + "_" + session,
		today(),
		strconv.Itoa(countNiftis(filepath.Join(subjectDeriv, "pet"))),
		strconv.Itoa(countFilesWithSuffix(surfDir, ".func.gii")),
		spacePet,
		currentUser(config),
		elapsed,
	}))
	info(fmt.Sprintf("Surface mapping finished for sub-%s ses-%s", subject, session))
}
