// Command train fits a slide.Network on a libsvm-style dataset and saves
// the result to a bbolt checkpoint database.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"slidenet/internal/checkpoint"
	"slidenet/internal/dataset"
	"slidenet/internal/monitor"
	"slidenet/internal/slide"
	"slidenet/internal/trainer"
)

// serveDashboard runs a minimal WebSocket server broadcasting hub's
// messages, until the process exits. Errors are logged, not fatal: the
// dashboard is a convenience, not required for training to complete.
func serveDashboard(addr string, hub *monitor.Hub) {
	mux := http.NewServeMux()
	mux.Handle("/ws", monitor.NewHandler(hub))
	log.Printf("train: dashboard listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("train: dashboard server stopped: %v", err)
	}
}

func loadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
}

func main() {
	loadEnv()

	dataPath := flag.String("data", "", "path to a libsvm-style dataset file")
	batchSize := flag.Int("batch-size", 64, "mini-batch size")
	iterations := flag.Int("iterations", 1000, "number of training iterations")
	learningRate := flag.Float64("learning-rate", 0.001, "Adam base learning rate")
	casePerRehash := flag.Int("case-per-rehash", 0, "sample count between LSH rehashes (0 disables)")
	casePerRebuild := flag.Int("case-per-rebuild", 0, "sample count between hasher rebuilds (0 disables)")
	checkpointDB := flag.String("checkpoint-db", "checkpoints.db", "bbolt database to save the trained network into")
	checkpointName := flag.String("checkpoint-name", "default", "name to save this run's checkpoint under")
	serveAddr := flag.String("serve", "", "if set, also broadcast progress over a ws dashboard at this address (e.g. :8090)")
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("train: -data is required")
	}

	f, err := os.Open(*dataPath)
	if err != nil {
		log.Fatalf("train: open dataset: %v", err)
	}
	cases, inputSize, err := dataset.ParseLibSVM(f)
	f.Close()
	if err != nil {
		log.Fatalf("train: parse dataset: %v", err)
	}
	log.Printf("train: loaded %d samples, input size %d", len(cases), inputSize)

	outputSize := 0
	for _, c := range cases {
		for _, label := range c.Labels {
			if label+1 > outputSize {
				outputSize = label + 1
			}
		}
	}

	net, err := slide.NewNetwork(*batchSize, float32(*learningRate), inputSize, []slide.LayerConfig{
		{Size: 256, NodeType: slide.Relu, K: 4, L: 4, RangePow: 12, Sparsity: 0.1},
		{Size: outputSize, NodeType: slide.Softmax, K: 4, L: 4, Sparsity: 1},
	})
	if err != nil {
		log.Fatalf("train: build network: %v", err)
	}

	tr := trainer.Trainer{Net: net, CasePerRehash: *casePerRehash, CasePerRebuild: *casePerRebuild}

	var bridge *monitor.Bridge
	if *serveAddr != "" {
		hub := monitor.NewHub()
		bridge = monitor.NewBridge(hub)
		go serveDashboard(*serveAddr, hub)
	}

	bar := mpb.New(mpb.WithWidth(60))
	progressBar := bar.AddBar(int64(*iterations),
		mpb.PrependDecorators(
			decor.Name("training: "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done!"),
		),
	)

	err = tr.Run(context.Background(), cases, *batchSize, *iterations, func(p trainer.Progress) {
		progressBar.Increment()
		if bridge != nil {
			bridge.OnProgress(p)
		}
	})
	if err != nil {
		log.Fatalf("train: %v", err)
	}
	bar.Wait()
	if bridge != nil {
		bridge.OnDone()
	}

	db, err := checkpoint.Open(*checkpointDB)
	if err != nil {
		log.Fatalf("train: open checkpoint db: %v", err)
	}
	defer db.Close()

	snap := checkpoint.FromNetwork(net, time.Now())
	if err := checkpoint.Save(db, *checkpointName, snap); err != nil {
		log.Fatalf("train: save checkpoint: %v", err)
	}
	log.Printf("train: saved checkpoint %q to %s", *checkpointName, *checkpointDB)
}
