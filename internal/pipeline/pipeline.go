package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/clinmetrics/internal/cache"
	"github.com/ppiankov/clinmetrics/internal/logging"
	"github.com/ppiankov/clinmetrics/internal/model"
	"github.com/ppiankov/clinmetrics/pkg/annotation"
	"github.com/ppiankov/clinmetrics/pkg/dataset"
	"github.com/ppiankov/clinmetrics/pkg/importer"
	"github.com/ppiankov/clinmetrics/pkg/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Pipeline loads input files into datasets and produces reports
type Pipeline struct {
	loader *Loader
	config *model.Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewPipeline creates a pipeline. c may be nil to disable caching.
func NewPipeline(cfg *model.Config, c cache.Cache, logger zerolog.Logger) *Pipeline {
	if !cfg.Cache.Enabled {
		c = nil
	}
	return &Pipeline{
		loader: NewLoader(c, cfg.Cache.TTL, cfg.Import.MaxFileBytes),
		config: cfg,
		logger: logging.Component(logger, "pipeline"),
		now:    time.Now,
	}
}

// warnings collects notices of one load. Loads may run concurrently.
type warnings struct {
	mu   sync.Mutex
	msgs []string
}

func (w *warnings) add(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msg)
}

func (w *warnings) list() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.msgs...)
}

func (p *Pipeline) notifier(src model.Source, w *warnings) dataset.Notifier {
	log := logging.Notifier(p.logger.With().Str("path", src.Path).Logger())
	return func(n dataset.Notice) {
		log(n)
		w.add(fmt.Sprintf("%s: %s", src.Path, n.Message))
	}
}

// LoadDataset reads and imports one input file
func (p *Pipeline) LoadDataset(ctx context.Context, src model.Source) (*dataset.Dataset, model.SourceMeta, error) {
	ds, meta, _, err := p.loadDataset(ctx, src, &warnings{})
	return ds, meta, err
}

func (p *Pipeline) loadDataset(ctx context.Context, src model.Source, w *warnings) (*dataset.Dataset, model.SourceMeta, []string, error) {
	loaded, err := p.loader.Load(ctx, src)
	if err != nil {
		return nil, model.SourceMeta{}, nil, fmt.Errorf("load %s: %w", src.Path, err)
	}

	p.logger.Debug().
		Str("path", src.Path).
		Str("format", string(src.Format)).
		Int("bytes", loaded.Meta.Bytes).
		Bool("cached", loaded.Meta.Cached).
		Msg("input loaded")

	notify := p.notifier(src, w)

	var ds *dataset.Dataset
	switch src.Format {
	case model.FormatExport:
		ds, err = p.importExport(loaded.Data, notify)
	case model.FormatPipeline:
		ds, err = p.importPipeline(loaded.Data, notify)
	default:
		err = fmt.Errorf("unknown input format %q", src.Format)
	}
	if err != nil {
		return nil, model.SourceMeta{}, nil, fmt.Errorf("import %s: %w", src.Path, err)
	}

	p.logger.Debug().
		Str("path", src.Path).
		Int("docs", ds.NumDocs()).
		Int("annotations", ds.NumAnnotations()).
		Msg("dataset imported")

	return ds, loaded.Meta, w.list(), nil
}

func (p *Pipeline) importExport(data []byte, notify dataset.Notifier) (*dataset.Dataset, error) {
	export, err := importer.ParseExport(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return importer.FromAnnotationExport(export, importer.ExportOptions{
		StripSpans:        p.config.Import.StripSpans,
		Cutset:            p.config.Import.Cutset,
		DefaultQualifiers: p.config.DefaultQualifiers,
		Notifier:          notify,
	})
}

func (p *Pipeline) importPipeline(data []byte, notify dataset.Notifier) (*dataset.Dataset, error) {
	docs, ids, err := importer.ReadPipelineJSONL(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	ds, err := importer.FromPipelineOutput(docs, ids, dataset.WithNotifier(notify))
	if err != nil {
		return nil, err
	}

	if len(p.config.DefaultQualifiers) > 0 {
		if err := ds.SetDefaultQualifiers(p.config.DefaultQualifiers); err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// Stats builds the statistics report of one input
func (p *Pipeline) Stats(ctx context.Context, src model.Source) (*model.StatsReport, error) {
	w := &warnings{}
	ds, meta, msgs, err := p.loadDataset(ctx, src, w)
	if err != nil {
		return nil, err
	}

	stats := ds.Stats(dataset.StatsOptions{
		MaxSpans:  p.config.Stats.MaxSpans,
		MaxLabels: p.config.Stats.MaxLabels,
	})

	return &model.StatsReport{
		Source:            meta,
		Stats:             stats,
		DefaultQualifiers: ds.DefaultQualifiers,
		Warnings:          msgs,
	}, nil
}

// CompareOptions selects what Compare reports
type CompareOptions struct {
	PerLabel   bool
	NonDefault bool // score only annotations with a non-default qualifier
}

// Compare scores pred against gold. Both inputs are imported fresh, so
// concurrent calls never share a dataset.
func (p *Pipeline) Compare(ctx context.Context, gold, pred model.Source, opts CompareOptions) (*model.CompareReport, error) {
	var (
		goldDS, predDS     *dataset.Dataset
		goldMeta, predMeta model.SourceMeta
		w                  warnings
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		goldDS, goldMeta, _, err = p.loadDataset(gctx, gold, &w)
		return err
	})
	g.Go(func() error {
		var err error
		predDS, predMeta, _, err = p.loadDataset(gctx, pred, &w)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m, err := metrics.New(goldDS, predDS)
	if err != nil {
		return nil, fmt.Errorf("compare %s with %s: %w", gold.Path, pred.Path, err)
	}

	var filter annotation.Filter
	filterName := model.FilterAll
	if opts.NonDefault {
		filter = annotation.AnyNonDefault()
		filterName = model.FilterNonDefault
	}

	report, err := m.Report(filter, opts.PerLabel)
	if err != nil {
		return nil, fmt.Errorf("compare %s with %s: %w", gold.Path, pred.Path, err)
	}

	return &model.CompareReport{
		RunID:       uuid.NewString(),
		GeneratedAt: p.now().UTC(),
		True:        goldMeta,
		Pred:        predMeta,
		Filter:      filterName,
		Metrics:     report,
		Warnings:    w.list(),
	}, nil
}
