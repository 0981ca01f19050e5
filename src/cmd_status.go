package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/guptarohit/asciigraph"
	"github.com/mkmik/argsort"
	"github.com/olekukonko/tablewriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func printTSV(path string) bool {
	header, rows, err := readTable(path)
	if err != nil || header == nil {
		return false
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
	return true
}

// processingTimes extracts the processing.time column of a log table.
func processingTimes(path string) []float64 {
	header, rows, err := readTable(path)
	if err != nil {
		return nil
	}
	timeCol := -1
	for i, h := range header {
		if h == "processing.time" {
			timeCol = i
		}
	}
	if timeCol < 0 {
		return nil
	}
	var times []float64
	for _, row := range rows {
		if len(row) <= timeCol {
			continue
		}
		if v, err := strconv.ParseFloat(row[timeCol], 64); err == nil {
			times = append(times, v)
		}
	}
	return times
}

// runStatus prints the dataset configuration, the BIDS tree counts, the
// bookkeeping tables and (with detailed) the scanned raw data series.
func runStatus(datasetDir string, detailed bool) {
	config, err := readConfig(configPath(datasetDir))
	if err != nil {
		exitGracefully(errors.New(errorConfigFile))
	}

	if !detailed {
		// hide the large series listing, we need the field again later so
		// copy the config through Marshal and Unmarshal
		tt, err := json.Marshal(config)
		if err == nil {
			var newConfig Config
			json.Unmarshal(tt, &newConfig)
			newConfig.Data.DataInfo = nil
			newConfig.Data.Ecat = nil
			file, _ := json.MarshalIndent(newConfig, "", " ")
			fmt.Println(string(file))
		}
	} else {
		file, _ := json.MarshalIndent(config, "", " ")
		fmt.Println(string(file))
	}

	langFmt := message.NewPrinter(language.English)
	subjects, _ := listSubjects(datasetDir)
	numSessions := 0
	numPet := 0
	numAnat := 0
	for _, s := range subjects {
		sessions, _ := listSessions(datasetDir, s)
		numSessions += len(sessions)
		for _, ses := range sessions {
			numPet += countNiftis(filepath.Join(datasetDir, "sub-"+s, "ses-"+ses, "pet"))
			numAnat += countNiftis(filepath.Join(datasetDir, "sub-"+s, "ses-"+ses, "anat"))
		}
	}
	langFmt.Printf("\nDataset with %d subjects, %d sessions, %d PET and %d anatomical images\n\n",
		len(subjects), numSessions, numPet, numAnat)

	printTSV(filepath.Join(datasetDir, "participants.tsv"))
	if !printTSV(filepath.Join(datasetDir, "participants_bic2bids.tsv")) {
		fmt.Println("No conversions recorded yet (participants_bic2bids.tsv is missing).")
	}
	if detailed {
		if times := processingTimes(filepath.Join(datasetDir, "participants_bic2bids.tsv")); len(times) > 1 {
			fmt.Println("")
			fmt.Println(asciigraph.Plot(times,
				asciigraph.Height(8), asciigraph.Width(60),
				asciigraph.Caption("minutes per conversion")))
		}
	}

	if !detailed {
		fmt.Println("This short status does not contain the series listing. Use the -all option to obtain all info.")
		return
	}
	if len(config.Data.DataInfo) > 0 {
		fmt.Printf("\nRaw data summary\n\n")
		type seriesEntry struct {
			uid  string
			info SeriesInfo
		}
		counterStudy := 0
		for studyUID, series := range config.Data.DataInfo {
			counterStudy++
			entries := make([]seriesEntry, 0, len(series))
			for uid, si := range series {
				entries = append(entries, seriesEntry{uid: uid, info: si})
			}
			if len(entries) == 0 {
				continue
			}
			order := argsort.SortSlice(entries, func(i, j int) bool {
				return entries[i].info.SeriesNumber < entries[j].info.SeriesNumber
			})
			first := entries[order[0]].info
			name := first.PatientID
			if first.PatientName != "" && first.PatientName != name {
				name = name + "-" + first.PatientName
			}
			fmt.Printf("Patient: %s\n", name)
			fmt.Printf("  Study: %s (%d/%d)\n", studyUID, counterStudy, len(config.Data.DataInfo))
			for i, idx := range order {
				si := entries[idx].info
				de := si.SeriesDescription
				if de == "" {
					de = "no series description"
				} else {
					de = fmt.Sprintf("description \"%s\"", de)
				}
				postfix := "s"
				if si.NumImages == 1 {
					postfix = ""
				}
				fmt.Printf("    %s (%d/%d) %d %s image%s, series: %d, %s\n",
					entries[idx].uid, i+1, len(entries), si.NumImages, si.Modality, postfix,
					si.SeriesNumber, de)
			}
			fmt.Println("")
		}
	}
	if len(config.Data.Ecat) > 0 {
		fmt.Printf("ECAT files\n")
		for _, e := range config.Data.Ecat {
			langFmt.Printf("    %s (%s, %d bytes)\n", e.Path, e.Kind, e.SizeBytes)
		}
	}
}
