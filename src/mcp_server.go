package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// startMCP exposes the dataset to MCP clients like vscode. The dataset
// directory comes from the client's workspace roots, the -bids flag is the
// fallback for clients that do not share roots.
func startMCP(useHttp string, rootFolder string) {
	if rootFolder != "" {
		datasetRoot = mustAbs(rootFolder)
	}
	if useHttp == "" {
		log.Println("Starting MCP server using stdin/stdout")
	}

	opts := &mcp.ServerOptions{
		Instructions:      "Use this server with the MCP protocol in vscode or other clients. All tools operate on a petpipe dataset directory, share one as a workspace root or set it with the change/root tool.",
		CompletionHandler: complete, // support completions by setting this handler
		RootsListChangedHandler: func(ctx context.Context, req *mcp.RootsListChangedRequest) {
			// the next getDatasetDir call picks up the new root
		},
	}

	server := mcp.NewServer(&mcp.Implementation{Name: own_name, Version: version}, opts)

	mcp.AddTool(server, &mcp.Tool{Name: "petpipe/info", Description: "petpipe is a set of tools to convert PET acquisitions from the BIC HRRT scanner into a BIDS dataset and to process them into hippocampal surface maps. The list of tools includes clearing out the cached raw data information and adding new data folders."}, infoTool)
	mcp.AddTool(server, &mcp.Tool{Name: "ping"}, pingingTool)
	mcp.AddTool(server, &mcp.Tool{Name: "log"}, loggingTool)
	mcp.AddTool(server, &mcp.Tool{Name: "participants", Description: "List the participants of the BIDS dataset with their site and group."}, participantsTool)
	mcp.AddTool(server, &mcp.Tool{Name: "processing", Description: "Summarize the conversion log of the BIDS dataset."}, processingTool)
	mcp.AddTool(server, &mcp.Tool{Name: "sessions", Description: "List the sessions per subject of the BIDS dataset."}, sessionsTool)

	mcp.AddTool(server, &mcp.Tool{Name: "clear", Description: "petpipe tool to clear out the cached raw data information."}, clearDataCacheTool)
	mcp.AddTool(server, &mcp.Tool{Name: "add/data", Description: "Add a new raw data folder. Adding data will require petpipe to parse the whole directory which takes some time. Wait for this operation to finish before querying the resources again."}, addDataCacheTool)
	mcp.AddTool(server, &mcp.Tool{Name: "change/root", Description: "Change to a new petpipe dataset folder."}, changeRootTool)

	server.AddPrompt(&mcp.Prompt{Name: "status"}, prompt)

	for _, name := range []string{"info", "data", "numstudies", "numseries", "numimages", "numecat", "numsubjects"} {
		server.AddResource(&mcp.Resource{
			Name:     name,
			MIMEType: "text/plain",
			URI:      "embedded:" + name,
		}, embeddedResource)
	}

	// Serve over stdio, or streamable HTTP if -http is set.
	if useHttp != "" {
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return server
		}, nil)
		log.Printf("MCP handler listening at %s", useHttp)
		http.ListenAndServe(useHttp, handler)
	} else {
		t := &mcp.LoggingTransport{Transport: &mcp.StdioTransport{}, Writer: os.Stderr}
		if err := server.Run(context.Background(), t); err != nil {
			log.Printf("Server failed: %v", err)
		}
	}
}

func prompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Dataset status prompt",
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: "Summarize the state of the PET dataset in " + req.Params.Arguments["dataset"]},
			},
		},
	}, nil
}

var embeddedResources = map[string]string{
	"info":        "This is the 'petpipe' tool server. 'petpipe' converts PET acquisitions from the BIC HRRT scanner into a BIDS dataset and processes them into hippocampal surface maps.",
	"data":        "", // config.Data.Path
	"numstudies":  "",
	"numseries":   "",
	"numimages":   "",
	"numecat":     "",
	"numsubjects": "",
}

func getDatasetDir(ctx context.Context, session *mcp.ServerSession) (string, error) {
	res, err := session.ListRoots(ctx, nil)
	if err == nil && len(res.Roots) > 0 {
		return strings.TrimPrefix(res.Roots[0].URI, "file://"), nil
	}
	// not every client shares its roots
	if datasetRoot != "" {
		return datasetRoot, nil
	}
	if err != nil {
		return "", fmt.Errorf("listing roots failed: %v", err)
	}
	return "", fmt.Errorf("the client does not share a workspace root and no dataset directory was set")
}

// add all fields to the embeddedResources global variable (update them)
func fillInEmbeddedResources(ctx context.Context, session *mcp.ServerSession) (map[string]string, error) {
	dir, err := getDatasetDir(ctx, session)
	if err != nil {
		return nil, err
	}
	config, err := readConfig(configPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}
	embeddedResources["data"] = config.Data.Path
	embeddedResources["numstudies"] = fmt.Sprintf("%d", len(config.Data.DataInfo))

	numSeries := 0
	numImages := 0
	for _, v := range config.Data.DataInfo {
		numSeries += len(v)
		for _, vv := range v {
			numImages += vv.NumImages
		}
	}
	embeddedResources["numseries"] = fmt.Sprintf("%d", numSeries)
	embeddedResources["numimages"] = fmt.Sprintf("%d", numImages)
	embeddedResources["numecat"] = fmt.Sprintf("%d", len(config.Data.Ecat))

	subjects, err := listSubjects(dir)
	if err == nil {
		embeddedResources["numsubjects"] = fmt.Sprintf("%d", len(subjects))
	}
	return embeddedResources, nil
}

func embeddedResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	u, err := url.Parse(req.Params.URI)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "embedded" {
		return nil, fmt.Errorf("wrong scheme: %q", u.Scheme)
	}
	key := u.Opaque
	if _, ok := embeddedResources[key]; !ok {
		return nil, fmt.Errorf("no embedded resource named %q", key)
	}
	if key != "info" {
		if _, err := fillInEmbeddedResources(ctx, req.Session); err != nil {
			return nil, err
		}
	}
	text := embeddedResources[key]
	if text == "" {
		text = "empty string"
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: req.Params.URI, MIMEType: "text/plain", Text: text},
		},
	}, nil
}

type args struct {
	Name string `json:"name" jsonschema:"an optional label for the request"`
}

type argsPath struct {
	Path string `json:"path" jsonschema:"the folder with raw ECAT or DICOM files to add"`
}

type argsSubject struct {
	Subject string `json:"subject" jsonschema:"restrict the listing to one subject, with or without the sub- prefix"`
}

type result struct {
	Message string `json:"message" jsonschema:"the message to convey"`
}

// if we clear out the data cache we need a result that reports the total numbers
type resultDataCache struct {
	Message    string `json:"message" jsonschema:"the message to convey"`
	NumStudies int    `json:"numstudies" jsonschema:"the number of DICOM studies"`
	NumSeries  int    `json:"numseries" jsonschema:"the number of DICOM image series"`
	NumEcat    int    `json:"numecat" jsonschema:"the number of ECAT7 files"`
}

type resultParticipants struct {
	Message      string   `json:"message" jsonschema:"the message to convey"`
	Participants []string `json:"participants" jsonschema:"one tab separated row per participant"`
}

type resultProcessing struct {
	Message        string  `json:"message" jsonschema:"the message to convey"`
	NumConversions int     `json:"numconversions" jsonschema:"the number of logged conversions"`
	TotalMinutes   float64 `json:"totalminutes" jsonschema:"the accumulated conversion time in minutes"`
}

type resultSessions struct {
	Message  string              `json:"message" jsonschema:"the message to convey"`
	Sessions map[string][]string `json:"sessions" jsonschema:"the session labels found per subject"`
}

// TOOL
func clearDataCacheTool(ctx context.Context, req *mcp.CallToolRequest, args *args) (*mcp.CallToolResult, *resultDataCache, error) {
	// find out if there is data, if there is no petpipe dataset produce an error
	dir, err := getDatasetDir(ctx, req.Session)
	if err != nil {
		return nil, &resultDataCache{Message: "Error could not get the dataset directory."}, err
	}
	config, err := readConfig(configPath(dir))
	if err != nil {
		return nil, &resultDataCache{Message: "Error could not read config file from the dataset directory."}, err
	}

	config.Data.DataInfo = make(map[string]map[string]SeriesInfo)
	config.Data.Ecat = nil
	config.Data.Path = ""

	if !config.writeConfig(dir) {
		return nil, &resultDataCache{Message: "Error could not write config file into the dataset directory."}, fmt.Errorf("could not write the config file in %s", dir)
	}

	// return that we cleared out the data cache, return the current number of dataset as well
	return nil, &resultDataCache{Message: "Removed all data", NumStudies: 0, NumSeries: 0, NumEcat: 0}, nil
}

func changeRootTool(ctx context.Context, req *mcp.CallToolRequest, args *argsPath) (*mcp.CallToolResult, *result, error) {
	// only a fallback, getDatasetDir prefers the roots the client shares
	datasetRoot = strings.TrimPrefix(args.Path, "file://")
	return nil, &result{Message: "Changed to the new root path"}, nil
}

func addDataCacheTool(ctx context.Context, req *mcp.CallToolRequest, args *argsPath) (*mcp.CallToolResult, *resultDataCache, error) {
	dir, err := getDatasetDir(ctx, req.Session)
	if err != nil {
		return nil, &resultDataCache{Message: "Error could not get the dataset directory."}, err
	}
	config, err := readConfig(configPath(dir))
	if err != nil {
		return nil, &resultDataCache{Message: "Error could not read config file from the dataset directory."}, err
	}

	dataPath := args.Path
	if dataPath == "" {
		// ask the user for the directory of the data to add
		res, err := req.Session.Elicit(ctx, &mcp.ElicitParams{
			Message: "Where is the data that should be added",
			RequestedSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"path": {Type: "string", Description: "The directory path on the local machine that contains ECAT or DICOM data to import.", Examples: []any{"file://somewhere/here/"}},
				},
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("eliciting failed: %v", err)
		}
		if v, ok := res.Content["path"].(string); ok {
			dataPath = v
		}
		if dataPath == "" {
			return nil, &resultDataCache{Message: "Error no data path was provided."}, nil
		}
	}

	// The following will take a while... should we report back on our progress?
	config.Data.Path = dataPath
	studies, ecat, err := dataSets(config, false)
	if err != nil {
		return nil, &resultDataCache{Message: fmt.Sprintf("Error the scan failed, %v", err)}, nil
	}
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
	config, err = readConfig(configPath(dir))
	if err != nil {
		return nil, &resultDataCache{Message: "Error could not read config file from the dataset directory."}, err
	}
	config.Data.DataInfo = studies
	config.Data.Ecat = ecat
	config.Data.Path = dataPath

	if !config.writeConfig(dir) {
		return nil, &resultDataCache{Message: "Error could not write config file into the dataset directory."}, fmt.Errorf("could not write the config file in %s", dir)
	}

	numSeries := 0
	for _, v := range studies {
		numSeries += len(v)
	}
	return nil, &resultDataCache{Message: "Added the data path", NumStudies: len(studies), NumSeries: numSeries, NumEcat: len(ecat)}, nil
}

// infoTool returns the embedded resources as one structured result.
func infoTool(ctx context.Context, req *mcp.CallToolRequest, args *args) (*mcp.CallToolResult, *result, error) {
	resources, err := fillInEmbeddedResources(ctx, req.Session)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Error, could not fill in the resource information, %v", err)},
			},
		}, &result{Message: "petpipe converts PET acquisitions from the BIC HRRT scanner into a BIDS dataset"}, nil
	}
	jsonContent, err := json.Marshal(resources)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonContent)},
		},
	}, &result{Message: "petpipe converts PET acquisitions from the BIC HRRT scanner into a BIDS dataset"}, nil
}

func participantsTool(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, *resultParticipants, error) {
	dir, err := getDatasetDir(ctx, req.Session)
	if err != nil {
		return nil, &resultParticipants{Message: "Error could not get the dataset directory."}, err
	}
	_, rows, err := readTable(filepath.Join(dir, "participants.tsv"))
	if err != nil {
		return nil, &resultParticipants{Message: "No participants have been converted yet."}, nil
	}
	var participants []string
	for _, row := range rows {
		participants = append(participants, strings.Join(row, "\t"))
	}
	return nil, &resultParticipants{
		Message:      fmt.Sprintf("%d participant(s)", len(participants)),
		Participants: participants,
	}, nil
}

func processingTool(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, *resultProcessing, error) {
	dir, err := getDatasetDir(ctx, req.Session)
	if err != nil {
		return nil, &resultProcessing{Message: "Error could not get the dataset directory."}, err
	}
	logPath := filepath.Join(dir, "participants_bic2bids.tsv")
	_, rows, err := readTable(logPath)
	if err != nil {
		return nil, &resultProcessing{Message: "No conversions have been logged yet."}, nil
	}
	var total float64
	for _, t := range processingTimes(logPath) {
		total += t
	}
	return nil, &resultProcessing{
		Message:        fmt.Sprintf("%d conversion(s) logged", len(rows)),
		NumConversions: len(rows),
		TotalMinutes:   total,
	}, nil
}

func sessionsTool(ctx context.Context, req *mcp.CallToolRequest, args *argsSubject) (*mcp.CallToolResult, *resultSessions, error) {
	dir, err := getDatasetDir(ctx, req.Session)
	if err != nil {
		return nil, &resultSessions{Message: "Error could not get the dataset directory."}, err
	}
	subjects, err := listSubjects(dir)
	if err != nil {
		return nil, &resultSessions{Message: "Error could not list the dataset directory."}, err
	}
	if args.Subject != "" {
		subjects = []string{normalizeLabel(args.Subject, "sub")}
	}
	sessions := make(map[string][]string)
	for _, subject := range subjects {
		list, err := listSessions(dir, subject)
		if err != nil {
			continue
		}
		sessions[subject] = list
	}
	return nil, &resultSessions{
		Message:  fmt.Sprintf("%d subject(s)", len(sessions)),
		Sessions: sessions,
	}, nil
}

func pingingTool(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
	if err := req.Session.Ping(ctx, nil); err != nil {
		return nil, nil, fmt.Errorf("ping failed")
	}
	return nil, nil, nil
}

func loggingTool(ctx context.Context, req *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
	dir, _ := getDatasetDir(ctx, req.Session)
	if err := req.Session.Log(ctx, &mcp.LoggingMessageParams{
		Data:  fmt.Sprintf("petpipe %s serving %s", version, dir),
		Level: "info",
	}); err != nil {
		return nil, nil, fmt.Errorf("log failed")
	}
	return nil, nil, nil
}

func complete(ctx context.Context, req *mcp.CompleteRequest) (*mcp.CompleteResult, error) {
	var suggestions []string
	switch req.Params.Ref.Type {
	case "ref/prompt":
		suggestions = []string{"petpipe init", "petpipe scan", "petpipe convert", "petpipe process", "petpipe map", "petpipe status"}
	case "ref/resource":
		suggestions = []string{"numstudies", "numseries", "numimages", "numecat", "numsubjects"}
	default:
		return nil, fmt.Errorf("unrecognized content type %s", req.Params.Ref.Type)
	}

	return &mcp.CompleteResult{
		Completion: mcp.CompletionResultDetails{
			Total:  len(suggestions),
			Values: suggestions,
		},
	}, nil
}
