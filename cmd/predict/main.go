// Command predict loads a checkpointed slide.Network and classifies a
// single libsvm-style sample.
package main

import (
	"flag"
	"log"
	"strings"

	"slidenet/internal/checkpoint"
	"slidenet/internal/dataset"
)

func main() {
	checkpointDB := flag.String("checkpoint-db", "checkpoints.db", "bbolt database to load the trained network from")
	checkpointName := flag.String("checkpoint-name", "default", "name the checkpoint was saved under")
	sample := flag.String("sample", "", "one libsvm-style sample line, e.g. \"0 0:1.0 3:0.5\"")
	flag.Parse()

	if *sample == "" {
		log.Fatal("predict: -sample is required")
	}

	db, err := checkpoint.Open(*checkpointDB)
	if err != nil {
		log.Fatalf("predict: open checkpoint db: %v", err)
	}
	defer db.Close()

	snap, err := checkpoint.Load(db, *checkpointName)
	if err != nil {
		log.Fatalf("predict: load checkpoint %q: %v", *checkpointName, err)
	}

	net, err := checkpoint.Restore(snap)
	if err != nil {
		log.Fatalf("predict: restore network: %v", err)
	}

	cases, _, err := dataset.ParseLibSVM(strings.NewReader(*sample))
	if err != nil {
		log.Fatalf("predict: parse sample: %v", err)
	}
	if len(cases) != 1 {
		log.Fatalf("predict: expected exactly one sample line, got %d", len(cases))
	}

	class, err := net.Predict(cases[0])
	if err != nil {
		log.Fatalf("predict: %v", err)
	}
	log.Printf("predicted class: %d", class)
}
