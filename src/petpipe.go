// Code written 2025 by the MICA lab (MICA-MNI).
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const version string = "0.1.0"

// The string below will be replaced during build time using
// -ldflags "-X main.compileDate=`date -u +.%Y%m%d.%H%M%S"`"
var compileDate string = ".unknown"

var own_name string = "petpipe"

// datasetRoot is the fallback dataset directory for the MCP server, used
// when the client does not share a workspace root.
var datasetRoot string = "."

//go:embed templates/README.md
var datasetReadme string

//go:embed templates/dataset_description.json
var datasetDescription string

//go:embed templates/CITATION.cff
var datasetCitation string

//go:embed templates/.bidsignore
var datasetBidsignore string

//go:embed templates/participants.json
var participantsSchema string

//go:embed templates/trc-mk6240_rec-acdyn_pet.json
var tracerSidecar string

//go:embed templates/subject_trc-MK6240_pet.json
var subjectTracerSidecar string

func main() {

	// disable logging
	log.SetFlags(0)
	log.SetOutput(ioutil.Discard)

	initCommand := flag.NewFlagSet("init", flag.ContinueOnError)
	scanCommand := flag.NewFlagSet("scan", flag.ContinueOnError)
	convertCommand := flag.NewFlagSet("convert", flag.ContinueOnError)
	processCommand := flag.NewFlagSet("process", flag.ContinueOnError)
	mapCommand := flag.NewFlagSet("map", flag.ContinueOnError)
	statusCommand := flag.NewFlagSet("status", flag.ContinueOnError)
	mcpCommand := flag.NewFlagSet("mcp", flag.ContinueOnError)

	var input_dir string = "."

	var author_name string
	initCommand.StringVar(&author_name, "author_name", "", "Author name stored in the dataset config and used in the conversion log.")
	var author_email string
	initCommand.StringVar(&author_email, "author_email", "", "Author email stored in the dataset config.")
	var init_micapipe string
	initCommand.StringVar(&init_micapipe, "micapipe", "", "Default micapipe derivatives directory used by the convert and process stages.")
	var init_help bool
	initCommand.BoolVar(&init_help, "help", false, "Show help for init.")

	var scan_data string
	scanCommand.StringVar(&scan_data, "data", "", "Path to a folder with raw scanner output. ECAT7 (.v) files and DICOM series\nare detected. If you want to specify a subset of folders use double quotes\nfor the path and the glob syntax. For example all folders that start with\nnumbers 008 and 009 would be read with -data \"path/to/data/0[8-9]*\"")
	var scan_preview bool
	scanCommand.BoolVar(&scan_preview, "preview", false, "Show an ASCII art preview of every DICOM image while scanning.")
	var scan_help bool
	scanCommand.BoolVar(&scan_help, "help", false, "Show help for scan.")

	var convert_sub string
	convertCommand.StringVar(&convert_sub, "sub", "", "Subject identifier, with or without the sub- prefix.")
	var convert_ses string
	convertCommand.StringVar(&convert_ses, "ses", "", "Session identifier, with or without the ses- prefix.")
	var convert_pet_dir string
	convertCommand.StringVar(&convert_pet_dir, "pet_dir", "", "Directory with the raw HRRT output of this session, the reconstructed\nemission *EM_4D_MC01.v and the attenuation map in Transmission/*TX.v.")
	var convert_bids string
	convertCommand.StringVar(&convert_bids, "bids", ".", "Output BIDS dataset directory.")
	var convert_micapipe string
	convertCommand.StringVar(&convert_micapipe, "micapipe", "", "micapipe derivatives directory with the anatomical workup of this subject.\nDefaults to the MicapipeDir of the dataset config.")
	var convert_pet_json string
	convertCommand.StringVar(&convert_pet_json, "pet_json", "", "JSON file with hand-entered PET acquisition values, merged into the\ndcm2niix sidecar. Defaults to .petpipe/subject_trc-MK6240_pet.json in the\nBIDS directory.")
	var convert_force bool
	convertCommand.BoolVar(&convert_force, "force", false, "Overwrite an existing output directory of this subject and session.")
	var convert_validator bool
	convertCommand.BoolVar(&convert_validator, "bids_validator", false, "Run the deno based bids-validator after the conversion.")
	var convert_help bool
	convertCommand.BoolVar(&convert_help, "help", false, "Show help for convert.")

	var process_sub string
	processCommand.StringVar(&process_sub, "sub", "", "Subject identifier, with or without the sub- prefix.")
	var process_ses string
	processCommand.StringVar(&process_ses, "ses", "", "Session identifier, with or without the ses- prefix.")
	var process_bids string
	processCommand.StringVar(&process_bids, "bids", ".", "BIDS dataset directory with the converted PET.")
	var process_micapipe string
	processCommand.StringVar(&process_micapipe, "micapipe", "", "micapipe derivatives directory with the anatomical workup of this subject.\nDefaults to the MicapipeDir of the dataset config.")
	var process_out string
	processCommand.StringVar(&process_out, "out", "", "Derivatives output directory. Defaults to the DerivativesDir of the\ndataset config or <bids>/derivatives.")
	var process_tmp string
	processCommand.StringVar(&process_tmp, "tmp_dir", "", "Directory for intermediate files. Defaults to the TempDirectory of the\ndataset config or a fresh system temp folder.")
	var process_threads int
	processCommand.IntVar(&process_threads, "threads", 0, "Number of threads for the registration. Defaults to the Threads value of\nthe dataset config.")
	var process_fwhm float64
	processCommand.Float64Var(&process_fwhm, "fwhm", 2.4, "Point spread function FWHM in mm used by the partial volume correction.")
	var process_pvc_mask string
	processCommand.StringVar(&process_pvc_mask, "pvc_mask", "", "Probabilistic gray matter mask for the Muller-Gartner partial volume\ncorrection. Without a mask the correction is skipped.")
	var process_force bool
	processCommand.BoolVar(&process_force, "force", false, "Overwrite an existing output directory of this subject and session.")
	var process_help bool
	processCommand.BoolVar(&process_help, "help", false, "Show help for process.")

	var map_sub string
	mapCommand.StringVar(&map_sub, "sub", "", "Subject identifier, with or without the sub- prefix.")
	var map_ses string
	mapCommand.StringVar(&map_ses, "ses", "", "Session identifier, with or without the ses- prefix.")
	var map_out string
	mapCommand.StringVar(&map_out, "out", "", "Derivatives directory written by the processing stage. Defaults to the\nDerivativesDir of the dataset config or ./derivatives.")
	var map_hippunfold string
	mapCommand.StringVar(&map_hippunfold, "hippunfold", "", "hippunfold derivatives directory with the midthickness surfaces.")
	var map_threads int
	mapCommand.IntVar(&map_threads, "threads", 0, "Number of threads for wb_command. Defaults to the Threads value of the\ndataset config.")
	var map_smooth int
	mapCommand.IntVar(&map_smooth, "smooth", 0, "Smoothing kernel size in mm applied along the surface. Defaults to the\nSmoothKernel value of the dataset config.")
	var map_force bool
	mapCommand.BoolVar(&map_force, "force", false, "Overwrite existing surface maps of this subject and session.")
	var map_help bool
	mapCommand.BoolVar(&map_help, "help", false, "Show help for map.")

	var status_detailed bool
	statusCommand.BoolVar(&status_detailed, "all", false, "Display all information.")
	var status_tui bool
	statusCommand.BoolVar(&status_tui, "tui", false, "Browse the dataset in the terminal, animates scanned DICOM series as\nASCII art.")
	var status_help bool
	statusCommand.BoolVar(&status_help, "help", false, "Show help for status.")

	var mcp_http string
	mcpCommand.StringVar(&mcp_http, "http", "", "Serve the MCP protocol over streamable HTTP at this address, for example\nlocalhost:8080. Without this option the server uses stdin/stdout.")
	var mcp_bids string
	mcpCommand.StringVar(&mcp_bids, "bids", "", "Dataset directory used when the MCP client does not share a workspace root.")
	var mcp_help bool
	mcpCommand.BoolVar(&mcp_help, "help", false, "Show help for mcp.")

	var show_version bool
	flag.BoolVar(&show_version, "version", false, "Show the version number.")

	own_name = os.Args[0]
	// Showing useful information when the user enters the --help option
	flag.Usage = func() {
		fmt.Printf("petpipe - PET pipeline for the BIC HRRT\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Println(" A tool to convert PET acquisitions of the Siemens HRRT scanner into a")
		fmt.Println(" BIDS dataset, register them to the micapipe anatomical workup and map")
		fmt.Printf(" them onto hippocampal surfaces from hippunfold.\n\n")
		fmt.Printf("Usage: %s [init|scan|convert|process|map|status|mcp] [options]\n\tStart with init to create a new dataset folder:\n\n\t%s init <dataset>\n\n", os.Args[0], os.Args[0])
		fmt.Printf("Option init:\n  Create a new BIDS dataset folder.\n\n")
		initCommand.PrintDefaults()
		fmt.Printf("\nOption scan:\n  Parse a folder with raw scanner output (ECAT and DICOM).\n\n")
		scanCommand.PrintDefaults()
		fmt.Printf("\nOption convert:\n  Convert the ECAT files of one subject and session to BIDS.\n\n")
		convertCommand.PrintDefaults()
		fmt.Printf("\nOption process:\n  Average the dynamic PET, register it to the nativepro T1w and resample\n  it into that space, optionally with partial volume correction.\n\n")
		processCommand.PrintDefaults()
		fmt.Printf("\nOption map:\n  Sample the processed PET onto the hippocampal surfaces.\n\n")
		mapCommand.PrintDefaults()
		fmt.Printf("\nOption status:\n  List the current state of the dataset.\n\n")
		statusCommand.PrintDefaults()
		fmt.Printf("\nOption mcp:\n  Start a model context protocol server for the dataset.\n\n")
		mcpCommand.PrintDefaults()
		fmt.Println("")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(-1)
	}

	switch os.Args[1] {
	case "init":
		if len(os.Args[2:]) == 0 {
			initCommand.PrintDefaults()
			return
		}
		if err := initCommand.Parse(os.Args[2:]); err == nil {
			if init_help {
				initCommand.PrintDefaults()
				return
			}
			// we expect a path first
			values := initCommand.Args()
			if len(values) != 1 {
				exitGracefully(errors.New("we need a single path entry specified"))
			} else {
				input_dir = initCommand.Arg(0)
			}

			if _, err := os.Stat(filepath.Join(input_dir, ".petpipe")); !os.IsNotExist(err) {
				exitGracefully(errors.New("this directory has already been initialized. Delete the .petpipe directory to do this again"))
			}
			if author_name == "" || author_email == "" {
				reader := bufio.NewReader(os.Stdin)
				// we can ask interactively about the author information
				if author_name == "" {
					fmt.Printf("Author name: ")
					author_name, err = reader.ReadString('\n')
					if err != nil {
						msg := "we need your name. Add with\n\t-author_name \"<name>\""
						exitGracefully(errors.New(msg))
					}
					author_name = strings.TrimSuffix(author_name, "\n")
					if len(author_name) < 2 {
						fmt.Println("Does not look like a name, but you know best.")
					}
				}
				if author_email == "" {
					fmt.Printf("Author email: ")
					author_email, err = reader.ReadString('\n')
					if err != nil {
						msg := "we need your email. Add with\n\t-author_email \"email@home\""
						exitGracefully(errors.New(msg))
					}
					author_email = strings.TrimSuffix(author_email, "\n")
					var emailRegex = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")
					if !emailRegex.MatchString(author_email) {
						fmt.Println("Does not look like an email - but you know best.")
					}
				}
			}
			// now we can create the folder - not earlier
			if _, err := os.Stat(input_dir); os.IsNotExist(err) {
				if err := os.Mkdir(input_dir, 0755); os.IsExist(err) {
					exitGracefully(errors.New("directory exist already"))
				}
			}
			data := Config{
				Date: time.Now().String(),
				Author: AuthorInfo{
					Name:  author_name,
					Email: author_email,
				},
				MicapipeDir:  init_micapipe,
				Threads:      6,
				SmoothKernel: 2,
			}
			if !data.writeConfig(input_dir) {
				exitGracefully(errors.New("could not write the config file"))
			}

			for _, f := range datasetBoilerplate() {
				createStub(filepath.Join(input_dir, f.Name), f.Content)
			}
			// classification rules so we can overwrite what petpipe does on its own
			createStub(filepath.Join(input_dir, ".petpipe", "classifyRules.json"), classifyRules)
			// acquisition values that dcm2niix cannot recover from the ECAT headers
			createStub(filepath.Join(input_dir, ".petpipe", "subject_trc-MK6240_pet.json"), subjectTracerSidecar)

			fmt.Printf("\nInit new dataset folder \"%s\" done.\n", input_dir)
			fmt.Printf("You might want to scan a folder with raw scanner data to get started\n\n\tcd \"%s\"\n\t%s scan -data <data folder>\n\n", input_dir, own_name)
			fmt.Println("The conversion and processing stages call dcm2niix, ANTs, petpvc, the\n" +
				"connectome workbench and deno. Make sure those are installed and on your\n" +
				"PATH before running\n\n" +
				" petpipe convert -sub <id> -ses <id> -pet_dir <folder>\n" +
				" petpipe process -sub <id> -ses <id>\n" +
				" petpipe map -sub <id> -ses <id> -hippunfold <folder>")
		}
	case "scan":
		if len(os.Args[2:]) == 0 {
			scanCommand.PrintDefaults()
			return
		}
		if err := scanCommand.Parse(os.Args[2:]); err == nil {
			if scan_help {
				scanCommand.PrintDefaults()
				return
			}
			// we might have a folder name after all the arguments to look into
			values := scanCommand.Args()
			if len(values) == 1 {
				input_dir = scanCommand.Arg(0)
			}
			config, err := readConfig(configPath(input_dir))
			if err != nil {
				exitGracefully(errors.New(errorConfigFile))
			}
			if scan_data == "" {
				exitGracefully(fmt.Errorf("specify a folder with raw scanner data\n\n\t%s scan -data <folder>", own_name))
			}
			if _, err := os.Stat(scan_data); os.IsNotExist(err) {
				// the data path could also be a glob string (has to be enclosed in double quotes)
				files, err := filepath.Glob(scan_data)
				if err != nil || len(files) < 1 {
					exitGracefully(errors.New("this data path does not exist or contains no data"))
				}
			}
			// a dataset can overwrite the classification rules petpipe ships with
			rulesPath := filepath.Join(input_dir, ".petpipe", "classifyRules.json")
			if content, err := ioutil.ReadFile(rulesPath); err == nil {
				classifyRules = string(content)
			}
			config.Data.Path = scan_data
			studies, ecat, err := dataSets(config, scan_preview)
			check(err)
			if len(studies) == 0 && len(ecat) == 0 {
				fmt.Println("We did not find any DICOM or ECAT files in the folder you provided. Please check if the files are available, un-compress any zip files to make them accessible to this tool.")
			} else {
				postfix := "ies"
				if len(studies) == 1 {
					postfix = "y"
				}
				fmt.Printf("Found %d DICOM stud%s and %d ECAT file(s).\n", len(studies), postfix, len(ecat))
			}

			// update the config file now - the above dataSets can take a long time!
			config, err = readConfig(configPath(input_dir))
			if err != nil {
				exitGracefully(errors.New(errorConfigFile))
			}
			config.Data.DataInfo = studies
			config.Data.Ecat = ecat
			config.Data.Path = scan_data
			if !config.writeConfig(input_dir) {
				exitGracefully(errors.New("could not write the config file"))
			}
			fmt.Printf("Inspect the scanned data with\n\n\t%s status -all\n\nor browse it interactively with\n\n\t%s status -tui\n", own_name, own_name)
		}
	case "convert":
		if len(os.Args[2:]) == 0 {
			convertCommand.PrintDefaults()
			return
		}
		if err := convertCommand.Parse(os.Args[2:]); err == nil {
			if convert_help {
				convertCommand.PrintDefaults()
				return
			}
			if convert_sub == "" || convert_ses == "" {
				exitGracefully(fmt.Errorf("we need a subject and a session\n\n\t%s convert -sub <id> -ses <id> -pet_dir <folder>", own_name))
			}
			if convert_pet_dir == "" {
				exitGracefully(fmt.Errorf("we need a folder with the raw ECAT files\n\n\t%s convert -sub <id> -ses <id> -pet_dir <folder>", own_name))
			}
			// the config is optional here, the conversion creates the dataset
			// files it needs
			config, _ := readConfig(configPath(convert_bids))
			if convert_micapipe == "" {
				convert_micapipe = config.MicapipeDir
			}
			runConvert(config, convertOptions{
				Subject:      convert_sub,
				Session:      convert_ses,
				PetDir:       convert_pet_dir,
				BidsDir:      convert_bids,
				MicapipeDir:  convert_micapipe,
				PetJSON:      convert_pet_json,
				Force:        convert_force,
				RunValidator: convert_validator,
			})
		}
	case "process":
		if len(os.Args[2:]) == 0 {
			processCommand.PrintDefaults()
			return
		}
		if err := processCommand.Parse(os.Args[2:]); err == nil {
			if process_help {
				processCommand.PrintDefaults()
				return
			}
			if process_sub == "" || process_ses == "" {
				exitGracefully(fmt.Errorf("we need a subject and a session\n\n\t%s process -sub <id> -ses <id>", own_name))
			}
			config, _ := readConfig(configPath(process_bids))
			if process_micapipe == "" {
				process_micapipe = config.MicapipeDir
			}
			if process_out == "" {
				process_out = config.DerivativesDir
			}
			if process_threads == 0 {
				process_threads = config.Threads
			}
			if process_threads == 0 {
				process_threads = 6
			}
			runProcess(config, processOptions{
				Subject:     process_sub,
				Session:     process_ses,
				BidsDir:     process_bids,
				MicapipeDir: process_micapipe,
				OutDir:      process_out,
				TmpDir:      process_tmp,
				Threads:     process_threads,
				Fwhm:        process_fwhm,
				PvcMask:     process_pvc_mask,
				Force:       process_force,
			})
		}
	case "map":
		if len(os.Args[2:]) == 0 {
			mapCommand.PrintDefaults()
			return
		}
		if err := mapCommand.Parse(os.Args[2:]); err == nil {
			if map_help {
				mapCommand.PrintDefaults()
				return
			}
			if map_sub == "" || map_ses == "" {
				exitGracefully(fmt.Errorf("we need a subject and a session\n\n\t%s map -sub <id> -ses <id> -hippunfold <folder>", own_name))
			}
			if map_hippunfold == "" {
				exitGracefully(fmt.Errorf("we need the hippunfold derivatives with the midthickness surfaces\n\n\t%s map -sub <id> -ses <id> -hippunfold <folder>", own_name))
			}
			config, _ := readConfig(configPath(input_dir))
			if map_out == "" {
				map_out = config.DerivativesDir
			}
			if map_out == "" {
				map_out = "derivatives"
			}
			if map_threads == 0 {
				map_threads = config.Threads
			}
			if map_threads == 0 {
				map_threads = 6
			}
			if map_smooth == 0 {
				map_smooth = config.SmoothKernel
			}
			if map_smooth == 0 {
				map_smooth = 2
			}
			runMap(config, mapOptions{
				Subject: map_sub,
				Session: map_ses,
				OutDir:  map_out,
				HippDir: map_hippunfold,
				Threads: map_threads,
				Smooth:  map_smooth,
				Force:   map_force,
			})
		}
	case "status":
		if err := statusCommand.Parse(os.Args[2:]); err == nil {
			if status_help {
				statusCommand.PrintDefaults()
				return
			}
			// we might have a folder name after all the arguments to look into
			values := statusCommand.Args()
			if len(values) == 1 {
				input_dir = statusCommand.Arg(0)
			}
			if status_tui {
				statusTUI := StatusTUI{datasetDir: input_dir}
				// Init blocks until the user quits the interface
				statusTUI.Init()
				return
			}
			runStatus(input_dir, status_detailed)
		}
	case "mcp":
		if err := mcpCommand.Parse(os.Args[2:]); err == nil {
			if mcp_help {
				mcpCommand.PrintDefaults()
				return
			}
			// logging was disabled above, the MCP server reports on stderr
			log.SetOutput(os.Stderr)
			startMCP(mcp_http, mcp_bids)
		}
	default:
		// fall back to parsing without a command
		flag.Parse()
		if show_version {
			fmt.Printf("petpipe version %s%s\n", version, compileDate)
			os.Exit(0)
		}
		flag.Usage()
		os.Exit(-1)
	}
}
