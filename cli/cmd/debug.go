package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/numlab/numerosity/cli/render"
	"github.com/numlab/numerosity/ipc"
	"github.com/numlab/numerosity/trigger"
)

// DebugCommand returns the debug command with subcommands.
// Debug commands are opt-in diagnostic tools and never mutate anything.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Diagnostic tools (ports, frames)",
		Subcommands: []*cli.Command{
			debugPortsCommand(),
			debugFramesCommand(),
		},
	}
}

// PortsResponse lists serial ports a trigger device could use.
type PortsResponse struct {
	Ports []string `json:"ports" yaml:"ports"`
}

// listPorts is replaced in tests.
var listPorts = trigger.ListPorts

func debugPortsCommand() *cli.Command {
	return &cli.Command{
		Name:   "ports",
		Usage:  "List serial ports visible to the system",
		Flags:  ReadOnlyFlags(),
		Action: debugPortsAction,
	}
}

func debugPortsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug commands", 1)
	}

	ports, err := listPorts()
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to list serial ports: %v", err), 1)
	}
	if ports == nil {
		ports = []string{}
	}
	return r.Render(PortsResponse{Ports: ports})
}

// FrameSummary describes one decoded renderer frame.
type FrameSummary struct {
	Index  int    `json:"index" yaml:"index"`
	Type   string `json:"type" yaml:"type"`
	Size   int    `json:"size" yaml:"size"`
	Detail string `json:"detail" yaml:"detail"`
}

func debugFramesCommand() *cli.Command {
	return &cli.Command{
		Name:      "frames",
		Usage:     "Decode a captured renderer frame stream (- for stdin)",
		ArgsUsage: "<file>",
		Flags:     ReadOnlyFlags(),
		Action:    debugFramesAction,
	}
}

func debugFramesAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("file required", 1)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug commands", 1)
	}

	var in io.Reader = os.Stdin
	if name := c.Args().First(); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer f.Close()
		in = f
	}

	frames, err := decodeFrames(in)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return r.Render(frames)
}

// decodeFrames reads frames until EOF. Undecodable payloads are reported
// and skipped; a truncated stream stops the walk.
func decodeFrames(in io.Reader) ([]FrameSummary, error) {
	dec := ipc.NewFrameDecoder(in)
	frames := []FrameSummary{}
	for i := 0; ; i++ {
		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("frame %d: %w", i, err)
		}

		s := FrameSummary{Index: i, Size: len(payload)}
		frame, err := ipc.DecodeFrame(payload)
		switch f := frame.(type) {
		case *ipc.StepFrame:
			s.Type = ipc.StepType
			s.Detail = fmt.Sprintf("%s %s", f.Step.Kind, f.Step.ID)
		case *ipc.EventFrame:
			s.Type = ipc.EventType
			s.Detail = fmt.Sprintf("%s %s", f.Event.Kind, f.Event.StepID)
		case *ipc.HelloFrame:
			s.Type = ipc.HelloType
			s.Detail = fmt.Sprintf("%s %s", f.Renderer, f.Version)
		case *ipc.CloseFrame:
			s.Type = ipc.CloseType
		default:
			s.Type = "invalid"
			if err != nil {
				s.Detail = err.Error()
			}
		}
		frames = append(frames, s)
	}
}
