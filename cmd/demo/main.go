// A CLI app to parse a Counter-Strike: Global Offensive .dem recording
// passed as an argument and print the normalized event stream it
// contains, as JSON or as a plain per-line text trace.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/icza/demo"
	"github.com/icza/demo/internal/semantic"
	"github.com/icza/demo/output"
)

const (
	appName    = "demo"
	appVersion = "v0.1.0"
	appHome    = "https://github.com/icza/demo"
)

const (
	ExitCodeMissingArguments         = 1
	ExitCodeFailedToParseRecording    = 2
	ExitCodeFailedToCreateOutputFile = 3
)

// Flag variables
var (
	version = flag.Bool("version", false, "print version info and exit")

	jsonOutput  = flag.Bool("json", false, "emit a single JSON document instead of a per-line text trace")
	prettyJSON  = flag.Bool("pretty-json", false, "indent JSON output; valid with 'json'")
	outFile     = flag.String("outfile", "", "optional output file name")
	indent      = flag.Bool("indent", true, "accepted for CLI compatibility; has no effect on the text trace")

	gameEvents          = flag.Bool("game-events", false, "emit derived game events (round/score/kill/...)")
	onlyHsboxEvents     = flag.Bool("only-hsbox-events", false, "restrict the emitted event set to the hsbox-compatible subset")
	suppressFootsteps   = flag.Bool("suppress-footstep-events", false, "drop footstep events from the stream")
	extraPlayerInfo     = flag.Bool("extra-player-info", false, "include each player's user ID alongside their name")
	deaths              = flag.Bool("deaths", false, "emit death events")
	suppressWarmupDeaths = flag.Bool("suppress-warmup-deaths", false, "drop death events recorded before match start")

	dumpStringTables   = flag.Bool("string-tables", false, "log string-table block sizes for debugging")
	dumpDataTables     = flag.Bool("data-tables", false, "log data-table block sizes for debugging")
	dumpPacketEntities = flag.Bool("packet-entities", false, "log packet-entities updates for debugging")
	dumpNetMessages    = flag.Bool("net-messages", false, "log every net message opcode for debugging")
)

func main() {
	flag.Parse()

	if *version {
		printVersion()
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(ExitCodeMissingArguments)
	}

	runID := uuid.New()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("run_id", runID.String()).Logger()

	cfg := demo.Config{
		Config: semantic.Config{
			OnlyHsboxEvents:        *onlyHsboxEvents,
			SuppressFootstepEvents: *suppressFootsteps,
			SuppressWarmupDeaths:   *suppressWarmupDeaths,
			DumpGameEvents:         *gameEvents,
			DumpDeaths:             *deaths,
		},
		ExtraPlayerInfo:    *extraPlayerInfo,
		DumpStringTables:   *dumpStringTables,
		DumpDataTables:     *dumpDataTables,
		DumpPacketEntities: *dumpPacketEntities,
		DumpNetMessages:    *dumpNetMessages,
		Logger:             log,
	}

	var destination = os.Stdout
	if *outFile != "" {
		foutput, err := os.Create(*outFile)
		if err != nil {
			fmt.Printf("Failed to create output file: %v\n", err)
			os.Exit(ExitCodeFailedToCreateOutputFile)
		}
		defer func() {
			if err := foutput.Close(); err != nil {
				panic(err)
			}
		}()
		destination = foutput
	}

	var sink output.Sink
	if *jsonOutput {
		sink = output.NewJSONSink(destination, *prettyJSON)
	} else {
		sink = output.NewTextSink(destination)
		_ = indent // text trace has no nested structure to indent; flag kept for CLI symmetry with the teacher
	}

	if err := demo.ParseFile(args[0], cfg, sink); err != nil {
		fmt.Printf("Failed to parse recording: %v\n", err)
		os.Exit(ExitCodeFailedToParseRecording)
	}
}

func printVersion() {
	fmt.Println(appName, "version:", appVersion)
	fmt.Println("Platform:", runtime.GOOS, runtime.GOARCH)
	fmt.Println("Built with:", runtime.Version())
	fmt.Println("Home page:", appHome)
}

func printUsage() {
	fmt.Println("Usage:")
	name := os.Args[0]
	fmt.Printf("\t%s [FLAGS] demofile.dem\n", name)
	fmt.Println("\tRun with '-h' to see a list of available flags.")
}
