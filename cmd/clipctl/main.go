package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ansel1/merry/v2"
	"github.com/davecgh/go-spew/spew"
	"github.com/joho/godotenv"

	"github.com/cliproom/cliproom/clips"
	"github.com/cliproom/cliproom/environment"
	"github.com/cliproom/cliproom/services/processor"
)

func main() {
	_ = godotenv.Load()

	client := processor.NewClient(environment.GetProcessorBaseURL()).
		WithTimeout(environment.GetDispatchTimeout())

	commands := map[string]func(*processor.Client) error{
		"convert": convertCommand,
		"trim":    trimCommand,
		"merge":   mergeCommand,
		"fetch":   fetchCommand,
		"health":  healthCommand,
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command, ok := commands[os.Args[1]]
	if !ok {
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err := command(client); err != nil {
		fmt.Printf("Error: %s\n", message(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`Usage: clipctl <command> [args]

Commands:
  convert <clip> [start end]   re-encode a clip, optionally cut to a window first
  trim <clip> <start> <end>    cut a clip down to the given window
  merge <clip> <clip> [...]    splice two or more clips in the given order
  fetch <fileID> [out]         download a finished rendition
  health                       check the processing service
`)
}

func convertCommand(client *processor.Client) error {
	path := param(2, "Enter clip path: ")
	if path == "" {
		return merry.New("no clip given")
	}
	var bounds *processor.Bounds
	if len(os.Args) > 4 {
		window, err := parseWindow(os.Args[3], os.Args[4])
		if err != nil {
			return err
		}
		bounds = &window
	}

	file, done, err := openClip(path)
	if err != nil {
		return err
	}
	defer done()

	result, err := client.Convert(context.Background(), file, bounds)
	if err != nil {
		return err
	}
	report(result)
	return nil
}

func trimCommand(client *processor.Client) error {
	if len(os.Args) < 5 {
		return merry.New("trim needs a clip, a start and an end")
	}
	window, err := parseWindow(os.Args[3], os.Args[4])
	if err != nil {
		return err
	}

	file, done, err := openClip(os.Args[2])
	if err != nil {
		return err
	}
	defer done()

	result, err := client.Trim(context.Background(), file, window)
	if err != nil {
		return err
	}
	report(result)
	return nil
}

func mergeCommand(client *processor.Client) error {
	paths := os.Args[2:]
	if len(paths) < 2 {
		return merry.New("merge needs at least two clips")
	}

	files := make([]processor.File, 0, len(paths))
	for _, path := range paths {
		file, done, err := openClip(path)
		if err != nil {
			return err
		}
		defer done()
		files = append(files, file)
	}

	result, err := client.Merge(context.Background(), files)
	if err != nil {
		return err
	}
	report(result)
	return nil
}

func fetchCommand(client *processor.Client) error {
	fileID := param(2, "Enter file id: ")
	if fileID == "" {
		return merry.New("no file id given")
	}
	out := fileID
	if len(os.Args) > 3 {
		out = os.Args[3]
	}

	retrieval, err := client.Retrieve(context.Background(), fileID)
	if err != nil {
		return err
	}
	defer retrieval.Body.Close()

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	written, err := io.Copy(f, retrieval.Body)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d bytes to %s\n", written, out)
	return nil
}

func healthCommand(client *processor.Client) error {
	status, err := client.Health(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", client.BaseURL(), status.Status)
	return nil
}

// openClip validates the file locally so obvious mistakes never reach the
// processing service.
func openClip(path string) (processor.File, func(), error) {
	info, err := os.Stat(path)
	if err != nil {
		return processor.File{}, nil, err
	}
	descriptor := clips.Descriptor{
		Name: filepath.Base(path),
		Size: info.Size(),
		Mime: clips.DetectType(filepath.Base(path), ""),
	}
	if err := clips.Validate(descriptor); err != nil {
		return processor.File{}, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return processor.File{}, nil, err
	}
	return processor.File{Name: descriptor.Name, Reader: f}, func() { _ = f.Close() }, nil
}

// parseWindow accepts finite seconds only; ParseFloat would happily hand
// back NaN or Inf for "NaN"/"Inf" flavored input.
func parseWindow(start, end string) (processor.Bounds, error) {
	s, err := strconv.ParseFloat(start, 64)
	if err != nil || math.IsNaN(s) || math.IsInf(s, 0) {
		return processor.Bounds{}, fmt.Errorf("bad start time %q", start)
	}
	e, err := strconv.ParseFloat(end, 64)
	if err != nil || math.IsNaN(e) || math.IsInf(e, 0) {
		return processor.Bounds{}, fmt.Errorf("bad end time %q", end)
	}
	if s < 0 || e <= s {
		return processor.Bounds{}, fmt.Errorf("start must be >= 0 and before end, got %s..%s", start, end)
	}
	return processor.Bounds{Start: s, End: e}, nil
}

func report(result *processor.ProcessResult) {
	if environment.IsDebug() {
		spew.Dump(result)
	}
	fmt.Printf("%s\n", result.Message)
	fmt.Printf("File ID: %s\n", result.FileID)
	fmt.Printf("Fetch it with: clipctl fetch %s\n", result.FileID)
}

func message(err error) string {
	if msg := merry.UserMessage(err); msg != "" {
		return msg
	}
	return err.Error()
}

func param(arg int, prompt string) string {
	if len(os.Args) > arg {
		return os.Args[arg]
	}
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	text, _ := reader.ReadString('\n')
	return strings.TrimSpace(text)
}
