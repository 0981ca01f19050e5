package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type TagAndValue struct {
	Tag   tag.Tag  `json:"tag"`
	Value []string `json:"value"`
}

type SeriesInfo struct {
	SeriesDescription     string
	NumImages             int
	SeriesNumber          int
	SequenceName          string
	Modality              string
	StudyDescription      string
	Manufacturer          string
	ManufacturerModelName string
	Path                  string
	PatientID             string
	PatientName           string
	ClassifyTypes         []string
	All                   []TagAndValue
}

// tagString reads the first string value of a tag, "" if absent.
func tagString(dataset dicom.Dataset, t tag.Tag) string {
	el, err := dataset.FindElementByTag(t)
	if err != nil {
		return ""
	}
	values := dicom.MustGetStrings(el.Value)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// classifyEcatName guesses the role of an ECAT7 file from its name. The
// HRRT writes emission frames as *EM_4D_MC01.v and transmission scans as
// *TX.v into a Transmission folder.
func classifyEcatName(name string) string {
	if strings.HasSuffix(name, "TX.v") {
		return "transmission"
	}
	if strings.Contains(name, "EM") {
		return "emission"
	}
	return "unknown"
}

func largestCommonPath(a string, b string) string {
	l1 := strings.Split(a, string(os.PathSeparator))
	l2 := strings.Split(b, string(os.PathSeparator))
	var lcp string = "-1"
	for i, j := 0, 0; i < len(l1) && j < len(l2); i, j = i+1, j+1 {
		if l1[i] != l2[j] {
			break
		}
		if lcp == "-1" {
			lcp = l1[i]
		} else {
			lcp = fmt.Sprintf("%s%s%s", lcp, string(os.PathSeparator), l1[i])
		}
	}
	return lcp
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]string)
	for _, v := range values {
		seen[v] = ""
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	return out
}

// dataSets walks config.Data.Path and collects the detected ECAT7 files
// and DICOM studies with their series. The DICOM side groups by
// StudyInstanceUID and SeriesInstanceUID and keeps a filtered copy of the
// header tags for classification and display.
func dataSets(config Config, showImages bool) (map[string]map[string]SeriesInfo, []EcatInfo, error) {
	var datasets = make(map[string]map[string]SeriesInfo)
	var ecatFiles []EcatInfo
	if config.Data.Path == "" {
		return datasets, ecatFiles, fmt.Errorf("no raw data path has been specified. Use\n\tpetpipe scan -data \"path-to-data\" to point at a directory with ECAT or DICOM data")
	}
	var input_path_list []string
	if _, err := os.Stat(config.Data.Path); err != nil && os.IsNotExist(err) {
		// could be a list of paths if we have a glob string
		input_path_list, err = filepath.Glob(config.Data.Path)
		if err != nil || len(input_path_list) < 1 {
			exitGracefully(errors.New("data path does not exist or is empty"))
		}
	} else {
		input_path_list = append(input_path_list, config.Data.Path)
	}
	counter := 0
	nonDICOM := 0
	langFmt := message.NewPrinter(language.English)
	for p := range input_path_list {
		err := filepath.Walk(input_path_list[p], func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			if filepath.Ext(info.Name()) == ".v" {
				ecatFiles = append(ecatFiles, EcatInfo{
					Path:      path,
					SizeBytes: info.Size(),
					Kind:      classifyEcatName(info.Name()),
				})
				return nil
			}
			if filepath.Ext(info.Name()) == ".zip" {
				// ignore compressed files
				nonDICOM = nonDICOM + 1
				return nil
			}

			dataset, err := dicom.ParseFile(path, nil)
			if err != nil && fmt.Sprintf("%s", err) == "unexpected EOF" {
				// the parser stops on tags with an undeclared value
				// representation but the dataset read so far can still be fine
				err = nil
			}
			if err != nil {
				nonDICOM = nonDICOM + 1
				return nil
			}

			StudyInstanceUID := tagString(dataset, tag.StudyInstanceUID)
			if StudyInstanceUID == "" {
				// without a study instance uid we cannot reference the file later
				return nil
			}
			SeriesInstanceUID := tagString(dataset, tag.SeriesInstanceUID)
			if SeriesInstanceUID == "" {
				return nil
			}

			removeElement := func(s []*dicom.Element, i int) []*dicom.Element {
				s[i] = s[len(s)-1]
				return s[:len(s)-1]
			}
			var all_dicom []*dicom.Element = dataset.Elements
			// drop the large binary elements based on VR
			for i := 0; i < len(all_dicom); i++ {
				if all_dicom[i].ValueRepresentation == tag.VRUInt16List ||
					all_dicom[i].ValueRepresentation == tag.VRUInt32List ||
					all_dicom[i].ValueRepresentation == tag.VRBytes ||
					all_dicom[i].ValueRepresentation == tag.VRPixelData {
					all_dicom = removeElement(all_dicom, i)
					i--
				}
			}
			var all []TagAndValue = make([]TagAndValue, len(all_dicom))
			for i := 0; i < len(all_dicom); i++ {
				all[i].Tag.Element = all_dicom[i].Tag.Element
				all[i].Tag.Group = all_dicom[i].Tag.Group
				switch all_dicom[i].Value.ValueType() {
				case dicom.Strings:
					all[i].Value = all_dicom[i].Value.GetValue().([]string)
				case dicom.Ints:
					all[i].Value = []string{}
					for _, v := range all_dicom[i].Value.GetValue().([]int) {
						all[i].Value = append(all[i].Value, fmt.Sprintf("%d", v))
					}
				case dicom.Floats:
					all[i].Value = []string{}
					for _, v := range all_dicom[i].Value.GetValue().([]float64) {
						all[i].Value = append(all[i].Value, fmt.Sprintf("%f", v))
					}
				default:
					// sequences are not needed for classification
				}
			}

			if showImages {
				numStudies := len(datasets)
				numSeries := 0
				numImages := 0
				for _, v := range datasets {
					numSeries += len(v)
					for _, vv := range v {
						numImages += vv.NumImages
					}
				}
				datasetInfo := langFmt.Sprintf("Studies: %d Series: %d Images: %d ECAT: %d Non-DICOM: %d",
					numStudies, numSeries, numImages, len(ecatFiles), nonDICOM)
				fmt.Printf("\033[0;0f") // go to the top of the screen
				showDataset(dataset, counter, path, datasetInfo, os.Stdout, false)
			} else {
				fmt.Printf("%05d files\r", counter)
			}
			counter = counter + 1

			SeriesDescription := tagString(dataset, tag.SeriesDescription)
			SeriesNumber, err := strconv.Atoi(tagString(dataset, tag.SeriesNumber))
			if err != nil {
				SeriesNumber = 0
			}
			SequenceName := tagString(dataset, tag.SequenceName)
			StudyDescription := tagString(dataset, tag.StudyDescription)
			Modality := tagString(dataset, tag.Modality)
			Manufacturer := tagString(dataset, tag.Manufacturer)
			ManufacturerModelName := tagString(dataset, tag.ManufacturerModelName)
			PatientID := tagString(dataset, tag.PatientID)
			PatientName := tagString(dataset, tag.PatientName)

			abs_path, err := filepath.Abs(path)
			if err != nil {
				abs_path = path
			}
			var path_pieces string = filepath.Dir(abs_path)

			if _, ok := datasets[StudyInstanceUID]; !ok {
				datasets[StudyInstanceUID] = make(map[string]SeriesInfo)
			}
			if val, ok := datasets[StudyInstanceUID][SeriesInstanceUID]; ok {
				datasets[StudyInstanceUID][SeriesInstanceUID] = SeriesInfo{
					NumImages:             val.NumImages + 1,
					SeriesDescription:     SeriesDescription,
					SeriesNumber:          SeriesNumber,
					SequenceName:          SequenceName,
					Modality:              Modality,
					Manufacturer:          Manufacturer,
					ManufacturerModelName: ManufacturerModelName,
					StudyDescription:      StudyDescription,
					Path:                  largestCommonPath(val.Path, path_pieces),
					PatientID:             PatientID,
					PatientName:           PatientName,
					All:                   val.All,
					// collect classes over all images, a localizer carries
					// axial, coronal and sagittal images in one series
					ClassifyTypes: uniqueStrings(append(val.ClassifyTypes, ClassifyDICOM(dataset)...)),
				}
			} else {
				datasets[StudyInstanceUID][SeriesInstanceUID] = SeriesInfo{
					NumImages:             1,
					SeriesDescription:     SeriesDescription,
					SeriesNumber:          SeriesNumber,
					SequenceName:          SequenceName,
					Modality:              Modality,
					Manufacturer:          Manufacturer,
					ManufacturerModelName: ManufacturerModelName,
					StudyDescription:      StudyDescription,
					PatientID:             PatientID,
					PatientName:           PatientName,
					Path:                  path_pieces,
					All:                   all,
					ClassifyTypes:         ClassifyDICOM(dataset),
				}
			}
			return nil
		})
		if err != nil {
			fmt.Println("Warning: could not walk this path")
		}
	}

	return datasets, ecatFiles, nil
}
