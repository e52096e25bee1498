package main

import (
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/javi11/rarstream"
)

// This example walks a (possibly multipart) archive with the typestate API:
// every header must be followed by exactly one action before the next header
// can be read. Small files are read into memory, the rest extracted to disk.
func main() {
	if len(os.Args) < 3 {
		log.Fatalf("usage: %s <archive>.part1.rar <output-dir>", os.Args[0])
	}
	outDir := os.Args[2]
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	arc, err := rarstream.New(os.Args[1], rarstream.WithLogger(logger)).OpenForProcessing()
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	for {
		entry, err := arc.ReadHeader()
		if err != nil {
			log.Fatalf("read header: %v", err)
		}
		if entry == nil {
			return
		}
		h := entry.Entry()
		switch {
		case h.IsDirectory(), h.IsSplitBefore():
			arc, err = entry.Skip()
		case h.UnpackedSize <= 1<<10:
			var data []byte
			data, arc, err = entry.Read()
			if err == nil {
				fmt.Printf("%s: %q\n", h.Filename, data)
			}
		default:
			arc, err = entry.ExtractWithBase(outDir)
			if err == nil {
				fmt.Printf("extracted %s (%d bytes)\n", h.Filename, h.UnpackedSize)
			}
		}
		if err != nil {
			log.Fatalf("%s: %v", h.Filename, err)
		}
	}
}
