package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/javi11/rarstream"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <archive>.part1.rar", os.Args[0])
	}

	// one JSON object per logical file, fragments grouped by volume
	files, err := rarstream.New(os.Args[1]).AsFirstPart().ListFiles()
	if err != nil {
		log.Fatalf("error listing files: %v", err)
	}
	b, _ := json.MarshalIndent(files, "", "  ")
	fmt.Println(string(b))
}
