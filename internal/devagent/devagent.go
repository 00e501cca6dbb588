package devagent

import (
	"context"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"codegraph/internal/bus"
	"codegraph/internal/errs"
	"codegraph/internal/indexer"
	"codegraph/internal/logging"
	"codegraph/internal/parser"
	"codegraph/internal/types"
)

// Options configures one DevAgent.
type Options struct {
	Extensions     []string
	IgnorePatterns []string
	BatchSize      int
	UseParser      bool
	DebugMode      bool
}

// Progress reports incremental status as IndexDirectory works through a
// target directory. Callers may pass a nil channel to ignore progress.
type Progress struct {
	FilesDiscovered int `json:"filesDiscovered"`
	FilesIndexed    int `json:"filesIndexed"`
	FilesFailed     int `json:"filesFailed"`
	BatchesTotal    int `json:"batchesTotal"`
	BatchesDone     int `json:"batchesDone"`
}

// Summary is the final result of an IndexDirectory call.
type Summary struct {
	Progress
	EntitiesIndexed      int `json:"entitiesIndexed"`
	RelationshipsCreated int `json:"relationshipsCreated"`
}

// DevAgent walks a directory tree, batches files, and delegates parsing and
// indexing. It has no queue of its own: the conductor hands it one
// indexDirectory task at a time, matching spec §4.5's single-writer
// constraint on the underlying store.
type DevAgent struct {
	mu        sync.RWMutex
	opts      Options
	parser    parser.Parser
	heuristic *parser.Heuristic
	indexer   *indexer.Indexer
	bus       *bus.Bus
	log       *logging.Logger
	sem       *semaphore.Weighted
	batchSize int64
	stop      chan struct{}
}

// New builds a DevAgent. treesitter may be nil, in which case every batch
// falls back to the heuristic synthesizer.
func New(opts Options, treesitter parser.Parser, idx *indexer.Indexer, b *bus.Bus) *DevAgent {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 100
	}
	if opts.DebugMode && batch > 5 {
		batch = 5
	}

	d := &DevAgent{
		opts:      opts,
		parser:    treesitter,
		heuristic: parser.NewHeuristic(),
		indexer:   idx,
		bus:       b,
		log:       logging.Get(logging.Dev),
		sem:       semaphore.NewWeighted(int64(maxConcurrentBatches())),
		batchSize: int64(batch),
		stop:      make(chan struct{}),
	}

	if b != nil {
		go d.watchResources()
	}
	return d
}

func maxConcurrentBatches() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	return n
}

// watchResources mirrors agent.Base's resources:adjusted subscription
// (spec §4.1): every agent, dev agent included, clamps its own batch size
// in response to a memory-pressure signal from the conductor.
func (d *DevAgent) watchResources() {
	ch, unsub := d.bus.Subscribe("resources:adjusted")
	defer unsub()
	for {
		select {
		case entry, ok := <-ch:
			if !ok {
				return
			}
			d.onResourcesAdjusted(entry)
		case <-d.stop:
			return
		}
	}
}

// Stop ends the dev agent's resources:adjusted subscription.
func (d *DevAgent) Stop() {
	close(d.stop)
}

func (d *DevAgent) onResourcesAdjusted(entry types.BusEntry) {
	data, ok := entry.Data.(map[string]any)
	if !ok {
		return
	}
	factor, ok := data["memoryPressureFactor"].(float64)
	if !ok || factor <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	newSize := int64(float64(d.currentBatchSize()) * factor)
	if newSize < 10 {
		newSize = 10
	}
	atomic.StoreInt64(&d.batchSize, newSize)
	d.log.Info("batch size adjusted", map[string]any{"newBatchSize": newSize})
}

func (d *DevAgent) currentBatchSize() int64 {
	return atomic.LoadInt64(&d.batchSize)
}

// IndexDirectory walks root, batches matching files, and indexes each batch
// in turn. Batches run with bounded parallelism via the agent's semaphore;
// within a batch, files are parsed together and then indexed file-by-file so
// the indexer's single-writer invariant holds.
func (d *DevAgent) IndexDirectory(ctx context.Context, root string, onProgress func(Progress)) (Summary, error) {
	if _, err := os.Stat(root); err != nil {
		return Summary{}, errs.Wrap(errs.KindInvalidInput, "devagent: stat root", err)
	}

	cfg := DefaultScannerConfig(d.opts.Extensions, d.opts.IgnorePatterns)
	files, err := Walk(root, cfg)
	if err != nil {
		return Summary{}, errs.Wrap(errs.KindInvalidInput, "devagent: walk root", err)
	}

	progress := Progress{FilesDiscovered: len(files)}
	batches := d.chunk(files)
	progress.BatchesTotal = len(batches)
	if onProgress != nil {
		onProgress(progress)
	}

	var mu sync.Mutex
	summary := Summary{Progress: progress}

	var wg sync.WaitGroup
	var firstErr error
	for _, batch := range batches {
		batch := batch
		if err := d.sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer d.sem.Release(1)

			indexed, entities, rels, failed := d.processBatch(ctx, root, batch)

			mu.Lock()
			summary.FilesIndexed += indexed
			summary.FilesFailed += failed
			summary.EntitiesIndexed += entities
			summary.RelationshipsCreated += rels
			summary.BatchesDone++
			if onProgress != nil {
				onProgress(summary.Progress)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return summary, errs.Wrap(errs.KindStorage, "devagent: index directory", firstErr)
	}
	return summary, nil
}

// chunk splits files into batches sized by the agent's current batch size,
// which may shrink mid-scan if resources:adjusted fires.
func (d *DevAgent) chunk(files []string) [][]string {
	size := int(d.currentBatchSize())
	if size <= 0 {
		size = 100
	}
	var out [][]string
	for i := 0; i < len(files); i += size {
		end := i + size
		if end > len(files) {
			end = len(files)
		}
		out = append(out, files[i:end])
	}
	return out
}

func (d *DevAgent) processBatch(ctx context.Context, root string, batch []string) (indexed, entities, rels, failed int) {
	inputs := make([]parser.File, 0, len(batch))
	for _, path := range batch {
		content, err := os.ReadFile(path)
		if err != nil {
			failed++
			continue
		}
		inputs = append(inputs, parser.File{Path: path, Content: content})
	}
	if len(inputs) == 0 {
		return
	}

	var results []types.FileParseResult
	if d.opts.UseParser && d.parser != nil {
		results = d.parser.ParseFiles(ctx, inputs, parser.Options{BatchSize: len(inputs), UseCache: true})
	} else {
		results = d.heuristic.ParseFiles(ctx, inputs, parser.Options{BatchSize: len(inputs)})
	}

	for _, r := range results {
		if r.Error != nil {
			failed++
			d.log.Warn("parse failed", map[string]any{"filePath": r.FilePath, "error": r.Error.Message})
			continue
		}
		if d.indexer == nil {
			indexed++
			continue
		}
		res, err := d.indexer.Index(ctx, indexer.Input{FilePath: r.FilePath, Entities: r.Entities, Relationships: r.Relationships})
		if err != nil {
			failed++
			d.log.Warn("index failed", map[string]any{"filePath": r.FilePath, "error": err.Error()})
			continue
		}
		indexed++
		entities += res.EntitiesExtracted
		rels += res.RelationshipsCreated
	}
	return
}
