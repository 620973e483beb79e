// Package main provides a command-line tool for inspecting and rewriting
// Civilization VI save files.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/ini.v1"

	"github.com/goopsie/civ6SaveTools/pkg/savefile"
)

var (
	mode     string
	inPath   string
	outPath  string
	savesDir string
)

func init() {
	flag.StringVar(&mode, "mode", "", "Operation mode: dump, copy, watch")
	flag.StringVar(&inPath, "in", "", "Input save file")
	flag.StringVar(&outPath, "out", "", "Output file (dump: TSV, copy: save; default stdout/derived)")
	flag.StringVar(&savesDir, "saves", "", "Saves directory for watch mode (default from civ6tools.ini)")
}

func main() {
	flag.Parse()
	loadConfig()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig fills unset flags from civ6tools.ini next to the binary's
// working directory. Missing file or section is fine.
func loadConfig() {
	cfg, err := ini.Load("civ6tools.ini")
	if err != nil {
		return
	}
	sec := cfg.Section("paths")
	if savesDir == "" && sec.HasKey("saves") {
		savesDir = sec.Key("saves").String()
	}
}

func run() error {
	switch mode {
	case "dump":
		if inPath == "" {
			return fmt.Errorf("dump mode requires -in")
		}
		return runDump()
	case "copy":
		if inPath == "" {
			return fmt.Errorf("copy mode requires -in")
		}
		return runCopy()
	case "watch":
		if savesDir == "" {
			return fmt.Errorf("watch mode requires -saves or a civ6tools.ini [paths] saves entry")
		}
		return runWatch()
	case "":
		flag.Usage()
		return fmt.Errorf("mode is required")
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
}

// runDump writes the tile table of a save as tab-separated text.
func runDump() error {
	tiles, err := savefile.ReadTiles(inPath)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return savefile.WriteTSV(out, tiles)
}

// runCopy re-encodes a save unchanged. A successful copy proves the map
// payload round-trips through the codec.
func runCopy() error {
	dst := outPath
	if dst == "" {
		ext := filepath.Ext(inPath)
		dst = strings.TrimSuffix(inPath, ext) + "_copy"
	}

	identity := func(blob []byte) ([]byte, error) { return blob, nil }
	if err := savefile.ModifyFile(inPath, dst, identity); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", savefile.NormalizeName(dst))
	return nil
}

// runWatch dumps a one-line summary of every save the game writes into the
// watched directory, until interrupted.
func runWatch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) && strings.EqualFold(filepath.Ext(event.Name), savefile.Extension) {
					summarize(event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "watch: %v\n", err)
			}
		}
	}()

	if err := watcher.Add(savesDir); err != nil {
		return fmt.Errorf("watch %s: %w", savesDir, err)
	}

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", savesDir)
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	<-interrupt
	return nil
}

func summarize(path string) {
	tiles, err := savefile.ReadTiles(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
		return
	}

	last := tiles[len(tiles)-1]
	fmt.Printf("%s: %d tiles (%dx%d)\n", filepath.Base(path), len(tiles), last.X+1, last.Y+1)
}
