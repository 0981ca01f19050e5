package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ANSI colors used for the stage banners and runtime reports.
const (
	colTeal   = "\033[0;36m"
	colYellow = "\033[38;5;220m"
	colPurple = "\033[38;5;141m"
	colEnd    = "\033[0m"
)

const divider = "-------------------------------------------------------------"

func info(message string) {
	fmt.Println(divider)
	fmt.Printf("[ INFO ] ... %s\n", message)
}

func warning(message string) {
	fmt.Printf("[ WARNING ] ... %s\n", message)
}

func errorMessage(message string) {
	fmt.Printf("[ ERROR ] ... %s\n", message)
}

func exitGracefully(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func check(e error) {
	if e != nil {
		exitGracefully(e)
	}
}

// banner prints the teal stage header used by all pipeline stages.
func banner(title string, fields [][2]string) {
	fmt.Println(colTeal + divider)
	fmt.Printf("         PET pipeline - %s\n", title)
	fmt.Println(divider + colEnd)
	for _, f := range fields {
		fmt.Printf("%s: %s\n", f[0], f[1])
	}
}

// minutesString formats a duration the way the processing log stores it.
func minutesString(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Minutes())
}

func reportRuntime(stage string, start time.Time) string {
	elapsed := minutesString(time.Since(start))
	fmt.Printf("%s running time: %s %s minutes %s\n", stage, colYellow, elapsed, colPurple+colEnd)
	return elapsed
}

func today() string {
	return time.Now().Format("01.02.2006")
}

// currentUser resolves the name recorded in the processing log. An author
// configured in .petpipe/config wins over the environment.
func currentUser(config Config) string {
	if config.Author.Name != "" {
		return config.Author.Name
	}
	return os.Getenv("USER")
}

func isDirectory(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func copyFile(src string, dst string) error {
	data, err := ioutil.ReadFile(src)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(dst, data, 0644)
}

// normalizeLabel strips an optional BIDS prefix such as "sub-" or "ses-"
// so users can pass either "sub-PX001" or "PX001".
func normalizeLabel(value string, prefix string) string {
	return strings.TrimPrefix(value, prefix+"-")
}

// runProgram executes an external tool, mirrors its standard output to the
// console and appends both streams to stdout.log and stderr.log in logDir.
// Extra environment entries are appended to the inherited environment.
func runProgram(logDir string, env []string, program string, args ...string) error {
	fmt.Printf("Running command: %s %s\n", program, strings.Join(args, " "))
	cmd := exec.Command(program, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var outb, errb bytes.Buffer
	cmd.Stdout = &outb
	cmd.Stderr = &errb
	runErr := cmd.Run()
	if outb.Len() > 0 {
		fmt.Println(outb.String())
	}
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err == nil {
			appendLog(filepath.Join(logDir, "stdout.log"), program, outb.String())
			appendLog(filepath.Join(logDir, "stderr.log"), program, errb.String())
		}
	}
	if runErr != nil {
		return fmt.Errorf("%s failed: %v\n%s", program, runErr, errb.String())
	}
	return nil
}

func appendLog(path string, program string, content string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "=== %s %s ===\n%s\n", time.Now().Format(time.RFC3339), program, content)
}
