package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// StatusTUI is an interactive browser for the converted BIDS tree and the
// scanned raw data. Selecting a raw DICOM series animates its images in
// the viewer, selecting it again stops the animation.
type StatusTUI struct {
	datasetDir                string
	dataSets                  map[string]map[string]SeriesInfo
	viewer                    *tview.TextView
	summary                   *tview.TextView
	selection                 *tview.TreeView
	app                       *tview.Application
	flex                      *tview.Flex
	selectedDatasets          []dicom.Dataset
	currentImage              int
	selectedSeriesInformation SeriesInfo
	config                    Config
	stopAnimation             bool
	lastSelectedSeries        string
}

func findSeriesInfo(dataSets map[string]map[string]SeriesInfo, SeriesInstanceUID string) (SeriesInfo, error) {
	for _, series := range dataSets {
		if _, ok := series[SeriesInstanceUID]; ok {
			return series[SeriesInstanceUID], nil
		}
	}
	return SeriesInfo{}, fmt.Errorf("SeriesInstanceUID %s not found", SeriesInstanceUID)
}

func addDataset(statusTUI *StatusTUI, dataset dicom.Dataset) {
	if len(statusTUI.selectedDatasets) == 0 {
		// first dataset of the series, show the meta-data
		if statusTUI.app != nil {
			var sAllInfo string
			removeBraces := regexp.MustCompile("(^{)|(}$)")
			for _, a := range statusTUI.selectedSeriesInformation.All {
				sAllInfo += " " + removeBraces.ReplaceAllString(fmt.Sprintf("%v", a), "") + "\n"
			}
			statusTUI.summary.Clear()
			fmt.Fprintf(statusTUI.summary, "%s\n%s\n\n%s",
				statusTUI.selectedSeriesInformation.SeriesDescription,
				strings.Join(statusTUI.selectedSeriesInformation.ClassifyTypes, ","),
				sAllInfo)
		}
	}
	statusTUI.selectedDatasets = append(statusTUI.selectedDatasets, dataset)
}

func (statusTUI *StatusTUI) showSessionSummary(sesDir string) {
	statusTUI.summary.Clear()
	fmt.Fprintf(statusTUI.summary, "%s\n\n", sesDir)
	for _, sub := range []string{"pet", "anat"} {
		files, err := ioutil.ReadDir(filepath.Join(sesDir, sub))
		if err != nil {
			continue
		}
		fmt.Fprintf(statusTUI.summary, "%s/\n", sub)
		for _, f := range files {
			fmt.Fprintf(statusTUI.summary, "  %s\n", f.Name())
		}
	}
}

func (statusTUI *StatusTUI) showEcatSummary(path string) {
	statusTUI.summary.Clear()
	for _, e := range statusTUI.config.Data.Ecat {
		if e.Path != path {
			continue
		}
		fmt.Fprintf(statusTUI.summary, "%s\n\nkind: %s\nsize: %d bytes\n", e.Path, e.Kind, e.SizeBytes)
	}
}

func (statusTUI *StatusTUI) Init() {
	newPrimitive := func(text string) *tview.TextView {
		return tview.NewTextView().
			SetTextAlign(tview.AlignLeft).
			SetText(text)
	}
	statusTUI.summary = newPrimitive("")
	statusTUI.summary.SetBorder(true).SetTitle("Current selection")
	statusTUI.viewer = newPrimitive("").SetDynamicColors(true)
	statusTUI.viewer.SetBorder(true).SetTitle("Viewer")
	statusTUI.selection = tview.NewTreeView()
	statusTUI.selection.SetBorder(true)
	statusTUI.selection.SetTitle("Dataset")

	conf, err := readConfig(configPath(statusTUI.datasetDir))
	if err == nil {
		// only set a text color if the value is configured
		if conf.Viewer.TextColor != "" {
			statusTUI.viewer.SetTextColor(tcell.GetColor(conf.Viewer.TextColor))
		}
	}
	statusTUI.config = conf
	if statusTUI.dataSets == nil {
		statusTUI.dataSets = conf.Data.DataInfo
	}

	statusTUI.flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(statusTUI.summary, 34, 1, false).
			AddItem(statusTUI.viewer, 0, 1, true), 0, 1, false).
		AddItem(statusTUI.selection, 12, 1, false)

	root := tview.NewTreeNode("petpipe").SetReference("")
	statusTUI.selection.SetRoot(root).SetCurrentNode(root)

	bidsNode := tview.NewTreeNode("BIDS dataset").SetReference("").SetSelectable(false)
	root.AddChild(bidsNode)
	subjects, _ := listSubjects(statusTUI.datasetDir)
	for _, subject := range subjects {
		subjNode := tview.NewTreeNode("sub-" + subject).SetReference("").SetSelectable(false)
		bidsNode.AddChild(subjNode)
		sessions, _ := listSessions(statusTUI.datasetDir, subject)
		for _, session := range sessions {
			sesDir := filepath.Join(statusTUI.datasetDir, "sub-"+subject, "ses-"+session)
			label := fmt.Sprintf("ses-%s [blue]%d pet[-] %d anat", session,
				countNiftis(filepath.Join(sesDir, "pet")),
				countNiftis(filepath.Join(sesDir, "anat")))
			sesNode := tview.NewTreeNode(label).SetReference("bids:" + sesDir).SetSelectable(true)
			subjNode.AddChild(sesNode)
		}
	}

	rawNode := tview.NewTreeNode("Raw series").SetReference("").SetSelectable(false)
	root.AddChild(rawNode)
	for _, series := range statusTUI.dataSets {
		type OneSeries struct {
			SeriesNumber      int
			SeriesDescription string
			SeriesInstanceUID string
			NumImages         int
			SequenceName      string
		}
		var AllSeries []OneSeries = make([]OneSeries, 0)
		var studyLabel string
		for uid, si := range series {
			if studyLabel == "" {
				studyLabel = fmt.Sprintf("%s-%s [yellow]%s", si.PatientID, si.PatientName, si.StudyDescription)
			}
			AllSeries = append(AllSeries, OneSeries{
				SeriesNumber:      si.SeriesNumber,
				SeriesDescription: si.SeriesDescription,
				SeriesInstanceUID: uid,
				NumImages:         si.NumImages,
				SequenceName:      si.SequenceName,
			})
		}
		sort.Slice(AllSeries[:], func(i, j int) bool {
			if AllSeries[i].SeriesNumber < AllSeries[j].SeriesNumber {
				return true
			}
			if (AllSeries[i].SeriesNumber == AllSeries[j].SeriesNumber) && (AllSeries[i].SeriesDescription < AllSeries[j].SeriesDescription) {
				return true
			}
			return false
		})
		studyNode := tview.NewTreeNode(studyLabel).SetReference("").SetSelectable(false)
		rawNode.AddChild(studyNode)
		for _, entry := range AllSeries {
			s := "s"
			if entry.NumImages == 1 {
				s = ""
			}
			ss := entry.SequenceName
			if len(entry.SequenceName) > 0 {
				ss = " \"" + ss + "\""
			}
			node2 := tview.NewTreeNode(fmt.Sprintf("series %03d%s [blue]\"%s\"[-] %d image%s",
				entry.SeriesNumber, ss, entry.SeriesDescription, entry.NumImages, s)).
				SetReference(entry.SeriesInstanceUID).
				SetSelectable(true)
			studyNode.AddChild(node2)
		}
	}

	if len(statusTUI.config.Data.Ecat) > 0 {
		ecatNode := tview.NewTreeNode("ECAT files").SetReference("").SetSelectable(false)
		root.AddChild(ecatNode)
		for _, e := range statusTUI.config.Data.Ecat {
			n := tview.NewTreeNode(fmt.Sprintf("%s [gray]%s[-]", filepath.Base(e.Path), e.Kind)).
				SetReference("ecat:" + e.Path).
				SetSelectable(true)
			ecatNode.AddChild(n)
		}
	}

	statusTUI.selection.SetSelectedFunc(func(node *tview.TreeNode) {
		reference := node.GetReference().(string)
		if strings.HasPrefix(reference, "bids:") {
			statusTUI.showSessionSummary(strings.TrimPrefix(reference, "bids:"))
			return
		}
		if strings.HasPrefix(reference, "ecat:") {
			statusTUI.showEcatSummary(strings.TrimPrefix(reference, "ecat:"))
			return
		}
		if len(reference) == 0 {
			node.SetExpanded(!node.IsExpanded())
			return
		}
		// selecting the same series again switches the animation off
		SeriesInstanceUID := reference
		if statusTUI.lastSelectedSeries == SeriesInstanceUID {
			statusTUI.stopAnimation = true
			statusTUI.lastSelectedSeries = ""
			return
		}
		statusTUI.stopAnimation = false
		statusTUI.lastSelectedSeries = SeriesInstanceUID

		series, err := findSeriesInfo(statusTUI.dataSets, SeriesInstanceUID)
		if err != nil {
			return
		}
		statusTUI.selectedSeriesInformation = series
		searchPath := series.Path
		if _, err := os.Stat(searchPath); os.IsNotExist(err) {
			if statusTUI.app != nil {
				fmt.Fprintf(statusTUI.viewer, "The path %s could not be found. Maybe a drive was disconnected?\n", searchPath)
			}
			return
		}
		SelectedSeriesInstanceUID := SeriesInstanceUID
		statusTUI.selectedDatasets = nil
		statusTUI.currentImage = 0
		filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			dataset, err := dicom.ParseFile(path, nil)
			if err == nil {
				SeriesInstanceUIDVal, err := dataset.FindElementByTag(tag.SeriesInstanceUID)
				if err == nil {
					var SeriesInstanceUID string = dicom.MustGetStrings(SeriesInstanceUIDVal.Value)[0]
					if SeriesInstanceUID != SelectedSeriesInstanceUID {
						return nil
					}
					if _, err := dataset.FindElementByTag(tag.PixelData); err != nil {
						return nil // ignore files that have no images
					}
					addDataset(statusTUI, dataset)
				}
			}
			return nil
		})
	})

	statusTUI.Run()
}

func doEvery(d time.Duration, statusTUI *StatusTUI, f func(*StatusTUI, time.Time)) {
	for x := range time.Tick(d) {
		f(statusTUI, x)
	}
}

func showImage(statusTUI *StatusTUI, idx int) {
	if idx >= len(statusTUI.selectedDatasets) {
		idx = len(statusTUI.selectedDatasets) - 1
	}
	if idx < 0 {
		idx = 0
	}
	statusTUI.currentImage = idx
	statusTUI.viewer.Clear()
	showDataset(statusTUI.selectedDatasets[idx], idx, "", "", statusTUI.viewer, statusTUI.config.Viewer.Clip)
	if statusTUI.app != nil {
		statusTUI.app.Draw()
		statusTUI.viewer.SetTitle(fmt.Sprintf("Image %d/%d", statusTUI.currentImage+1, len(statusTUI.selectedDatasets)))
	}
}

// nextImage advances the animation by one image of the selected series.
func nextImage(statusTUI *StatusTUI, t time.Time) {
	if statusTUI.stopAnimation {
		return
	}
	if len(statusTUI.selectedDatasets) == 0 {
		return
	}
	idx := (statusTUI.currentImage + 1) % len(statusTUI.selectedDatasets)
	showImage(statusTUI, idx)
}

func (statusTUI *StatusTUI) Run() {
	statusTUI.stopAnimation = false
	go doEvery(200*time.Millisecond, statusTUI, nextImage)

	statusTUI.app = tview.NewApplication()

	statusTUI.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		k := event.Key()
		prim := statusTUI.app.GetFocus()
		if statusTUI.stopAnimation && prim == statusTUI.viewer {
			if k == tcell.KeyDown {
				showImage(statusTUI, statusTUI.currentImage+1)
			} else if k == tcell.KeyUp {
				showImage(statusTUI, statusTUI.currentImage-1)
			}
		}
		if k == tcell.KeyRune {
			if event.Rune() == 'c' {
				statusTUI.stopAnimation = !statusTUI.stopAnimation
			}
			if event.Rune() == 'q' {
				statusTUI.Stop()
			}
		}
		return event
	})

	if err := statusTUI.app.SetRoot(statusTUI.flex, true).SetFocus(statusTUI.selection).EnableMouse(true).Run(); err != nil {
		fmt.Println("Error: the -tui mode is only available in a proper terminal.")
		panic(err)
	}
	defer statusTUI.app.Stop()
}

func (statusTUI StatusTUI) Stop() {
	statusTUI.app.Stop()
}
