package site

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/milkyware/glacier/internal/cache"
	"github.com/milkyware/glacier/internal/config"
	"github.com/milkyware/glacier/internal/content"
	"github.com/milkyware/glacier/internal/emit"
	gerrors "github.com/milkyware/glacier/internal/errors"
	"github.com/milkyware/glacier/internal/layout"
	"github.com/milkyware/glacier/internal/liquid"
	"github.com/milkyware/glacier/internal/markdown"
	"github.com/milkyware/glacier/internal/metrics"
	"github.com/milkyware/glacier/internal/minify"
)

// Options are the per-invocation build switches layered over the
// configuration by the CLI.
type Options struct {
	Drafts      bool
	Future      bool
	SkipInvalid bool      // ORed with build.skip_invalid from config
	Now         time.Time // zero means time.Now(); tests pin it
}

// Builder runs the whole build: load, transform, assemble, emit.
type Builder struct {
	cfg       *config.Config
	sourceDir string
	outputDir string
	opts      Options
	recorder  metrics.Recorder
}

// NewBuilder creates a Builder. The configuration is treated as immutable.
func NewBuilder(cfg *config.Config, sourceDir, outputDir string, opts Options) *Builder {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	return &Builder{
		cfg:       cfg,
		sourceDir: filepath.Clean(sourceDir),
		outputDir: filepath.Clean(outputDir),
		opts:      opts,
		recorder:  metrics.NoopRecorder{},
	}
}

// SetRecorder injects a metrics recorder. Returns the builder for chaining.
func (b *Builder) SetRecorder(r metrics.Recorder) *Builder {
	if r != nil {
		b.recorder = r
	}
	return b
}

// buildState carries mutable state across stages.
type buildState struct {
	builder   *Builder
	cfg       *config.Config
	staging   *emit.Staging
	layouts   *layout.Engine
	converter *markdown.Converter
	loaded    *content.Result
	model     *Model
	pages     []Page
	pathOwner map[string]string // output path -> source (collision detection)
	report    *Report
}

// Build executes the staged pipeline and atomically promotes the output.
// The returned report is non-nil whenever the pipeline started.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	report := newReport()

	// Build cache: when enabled and the input snapshot matches the last
	// successful build, skip the rebuild entirely. Purely acceleration;
	// any cache trouble degrades to a full build.
	var store *cache.Store
	var snap *cache.Snapshot
	if b.cfg.Build.Cache {
		if s, err := cache.Take(b.sourceDir, b.configHash(), b.writePaths()...); err == nil {
			snap = s
			store = cache.TryOpen(filepath.Join(b.sourceDir, ".glacier-cache.db"))
		}
		if store != nil {
			defer store.Close()
			if store.Unchanged(snap) && outputExists(b.outputDir) {
				slog.Info("Input unchanged since last build, skipping", "output", b.outputDir)
				report.Unchanged = true
				report.finish()
				b.observe(report)
				return report, nil
			}
		}
	}

	slog.Info("Starting site build",
		"source", b.sourceDir,
		"output", b.outputDir,
		"skin", string(b.cfg.Skin))

	staging := emit.NewStaging(b.outputDir)
	if err := staging.Begin(); err != nil {
		report.Errors = append(report.Errors, err.Error())
		report.finish()
		return report, err
	}

	bs := &buildState{
		builder:   b,
		cfg:       b.cfg,
		staging:   staging,
		pathOwner: map[string]string{},
		report:    report,
	}

	stages := []stageDef{
		{StagePrepareOutput, stagePrepare},
		{StageLoadContent, stageLoadContent},
		{StagePermalinks, stagePermalinks},
		{StageTransform, stageTransform},
		{StagePaginate, stagePaginate},
		{StageIndexes, stageIndexes},
		{StageWritePages, stageWritePages},
		{StageCopyAssets, stageCopyAssets},
	}

	if err := runStages(ctx, bs, stages); err != nil {
		staging.Abort()
		report.finish()
		b.observe(report)
		return report, err
	}

	report.finish()
	if err := staging.Finalize(); err != nil {
		report.Errors = append(report.Errors, err.Error())
		report.Outcome = OutcomeFailed
		b.observe(report)
		return report, err
	}

	if store != nil && snap != nil && report.Outcome == OutcomeSuccess {
		if err := store.Record(snap); err != nil {
			slog.Warn("Failed to record build cache snapshot", "error", err)
		}
	}
	if err := report.Persist(b.outputDir); err != nil {
		slog.Warn("Failed to persist build report", "error", err)
	}

	b.observe(report)
	slog.Info("Site build completed",
		"posts", report.Posts,
		"pages", report.Pages,
		"generated", report.GeneratedPages,
		"outcome", string(report.Outcome))
	return report, nil
}

func (b *Builder) observe(r *Report) {
	b.recorder.ObserveBuildDuration(r.End.Sub(r.Start))
	b.recorder.IncBuildOutcome(metrics.OutcomeLabel(r.Outcome))
	b.recorder.AddPagesRendered(r.Posts + r.Pages + r.GeneratedPages)
}

// configHash fingerprints the configuration fields that must trigger a
// rebuild even when no source file changed.
func (b *Builder) configHash() string {
	h := sha256.New()
	h.Write([]byte(b.cfg.Title))
	h.Write([]byte(b.cfg.Description))
	h.Write([]byte(b.cfg.URL))
	h.Write([]byte(b.cfg.Skin))
	h.Write([]byte(b.cfg.Permalink))
	fmt.Fprintf(h, "%d", b.cfg.Paginate)
	h.Write([]byte(strings.Join(b.cfg.Plugins, ",")))
	fmt.Fprintf(h, "%v%v%v", b.cfg.Build, b.cfg.Author, b.cfg.Markdown)
	fmt.Fprintf(h, "%v%v%v", b.opts.Drafts, b.opts.Future, b.skipInvalid())
	return hex.EncodeToString(h.Sum(nil))
}

func (b *Builder) skipInvalid() bool {
	return b.opts.SkipInvalid || b.cfg.Build.SkipInvalid
}

// writePaths lists everything the build writes. Content discovery and
// the cache fingerprint must skip them: an output directory placed inside
// the source tree would otherwise feed emitted pages back in as assets and
// invalidate the cache on every build.
func (b *Builder) writePaths() []string {
	return []string{
		b.outputDir,
		b.outputDir + "_stage",
		b.outputDir + ".prev",
		b.outputDir + ".report.json",
	}
}

func outputExists(dir string) bool {
	entries, err := filepath.Glob(filepath.Join(dir, "*"))
	return err == nil && len(entries) > 0
}

// --- stages ---

func stagePrepare(_ context.Context, bs *buildState) error {
	engine, err := layout.NewEngine(filepath.Join(bs.builder.sourceDir, "_layouts"))
	if err != nil {
		return newFatalStageError(StagePrepareOutput, err)
	}
	bs.layouts = engine
	bs.converter = markdown.New(bs.cfg.Markdown.HighlightStyle)
	return nil
}

func stageLoadContent(_ context.Context, bs *buildState) error {
	loader := content.NewLoader(bs.cfg, bs.builder.sourceDir, content.Options{
		IncludeDrafts: bs.builder.opts.Drafts,
		IncludeFuture: bs.builder.opts.Future,
		SkipInvalid:   bs.builder.skipInvalid(),
		Now:           bs.builder.opts.Now,
		ExcludePaths:  bs.builder.writePaths(),
	})
	res, err := loader.Load()
	if err != nil {
		return newFatalStageError(StageLoadContent, err)
	}
	bs.loaded = res
	bs.report.Posts = len(res.Posts)
	bs.report.Pages = len(res.Pages)
	bs.report.Assets = len(res.Assets)
	bs.report.Excluded = len(res.Excluded)

	if len(res.Excluded) > 0 {
		return newWarnStageError(StageLoadContent,
			fmt.Errorf("%d invalid document(s) excluded", len(res.Excluded)))
	}
	return nil
}

// stagePermalinks resolves every document's output location and fails the
// build when two documents collide on one output path.
func stagePermalinks(_ context.Context, bs *buildState) error {
	bs.model = &Model{Cfg: bs.cfg, Layouts: bs.layouts}

	claim := func(outputPath, source string) error {
		if owner, taken := bs.pathOwner[outputPath]; taken {
			return gerrors.NewCollision(outputPath, owner, source)
		}
		bs.pathOwner[outputPath] = source
		return nil
	}

	for _, doc := range bs.loaded.Posts {
		url := ExpandPermalink(bs.cfg.Permalink, doc)
		out := OutputPathForURL(url)
		if err := claim(out, doc.SourcePath); err != nil {
			return newFatalStageError(StagePermalinks, err)
		}
		bs.model.Posts = append(bs.model.Posts, RenderedDoc{Doc: doc, URL: url, OutputPath: out})
	}
	for _, doc := range bs.loaded.Pages {
		url := PageURL(doc)
		out := OutputPathForURL(url)
		if err := claim(out, doc.SourcePath); err != nil {
			return newFatalStageError(StagePermalinks, err)
		}
		bs.model.Pages = append(bs.model.Pages, RenderedDoc{Doc: doc, URL: url, OutputPath: out})
	}
	return nil
}

// stageTransform runs the per-document pipeline: token evaluation,
// Markdown conversion, layout wrapping.
func stageTransform(ctx context.Context, bs *buildState) error {
	siteCtx := SiteContext(bs.cfg)

	var excluded int
	transform := func(docs []RenderedDoc, defaultLayout string) ([]RenderedDoc, error) {
		kept := docs[:0]
		for _, rd := range docs {
			select {
			case <-ctx.Done():
				return nil, newCanceledStageError(StageTransform, ctx.Err())
			default:
			}

			page, err := bs.renderDocument(rd, siteCtx, defaultLayout)
			if err != nil {
				if bs.builder.skipInvalid() && gerrors.HasCategory(err, gerrors.CategoryContent) {
					slog.Warn("Excluding invalid document", "path", rd.Doc.SourcePath, "error", err)
					delete(bs.pathOwner, rd.OutputPath)
					excluded++
					continue
				}
				return nil, newFatalStageError(StageTransform,
					fmt.Errorf("%s: %w", rd.Doc.SourcePath, err))
			}
			rd.Body = page.body
			bs.pages = append(bs.pages, page.page)
			kept = append(kept, rd)
		}
		return kept, nil
	}

	var err error
	if bs.model.Posts, err = transform(bs.model.Posts, "post"); err != nil {
		return err
	}
	if bs.model.Pages, err = transform(bs.model.Pages, "page"); err != nil {
		return err
	}

	bs.report.Posts = len(bs.model.Posts)
	bs.report.Pages = len(bs.model.Pages)
	if excluded > 0 {
		bs.report.Excluded += excluded
		return newWarnStageError(StageTransform, fmt.Errorf("%d invalid document(s) excluded", excluded))
	}
	return nil
}

type renderedPage struct {
	page Page
	body template.HTML
}

// renderDocument produces one document's final page.
func (bs *buildState) renderDocument(rd RenderedDoc, siteCtx map[string]any, defaultLayout string) (renderedPage, error) {
	tokenCtx := liquid.Context{
		"site": siteCtx,
		"page": PageTokenContext(rd.Doc, rd.URL),
	}
	evaluated, err := liquid.Render(rd.Doc.RawBody, tokenCtx)
	if err != nil {
		return renderedPage{}, err
	}

	htmlBody, err := bs.converter.Convert(evaluated)
	if err != nil {
		return renderedPage{}, gerrors.WrapContent(err, gerrors.SeverityFatal, "markdown conversion")
	}

	layoutName := rd.Doc.Layout
	if layoutName == "" {
		layoutName = defaultLayout
	}
	body := template.HTML(htmlBody) // #nosec G203 -- rendered Markdown
	full, err := bs.layouts.Render(layoutName, layoutContext(bs.cfg, rd.Doc, rd.URL, body))
	if err != nil {
		return renderedPage{}, err
	}

	return renderedPage{
		page: Page{
			OutputPath: rd.OutputPath,
			URL:        rd.URL,
			HTML:       full,
			Lastmod:    rd.Doc.LastModified,
			InSitemap:  true,
			Source:     rd.Doc.SourcePath,
		},
		body: body,
	}, nil
}

func stagePaginate(_ context.Context, bs *buildState) error {
	pages, err := Paginate(bs.model)
	if err != nil {
		return newFatalStageError(StagePaginate, err)
	}
	return bs.appendGenerated(StagePaginate, pages)
}

func stageIndexes(_ context.Context, bs *buildState) error {
	producers, err := SelectProducers(bs.cfg.Plugins)
	if err != nil {
		return newFatalStageError(StageIndexes, err)
	}
	for _, p := range producers {
		pages, err := p.Produce(bs.model, bs.pages)
		if err != nil {
			return newFatalStageError(StageIndexes, fmt.Errorf("producer %s: %w", p.Name(), err))
		}
		if err := bs.appendGenerated(StageIndexes, pages); err != nil {
			return err
		}
	}
	return nil
}

// appendGenerated adds generated pages, keeping collision checking active
// for them too: a generated index landing on a document's path is as
// fatal as two documents colliding.
func (bs *buildState) appendGenerated(stage StageName, pages []Page) error {
	for _, p := range pages {
		if owner, taken := bs.pathOwner[p.OutputPath]; taken {
			return newFatalStageError(stage, gerrors.NewCollision(p.OutputPath, owner, "generated:"+p.URL))
		}
		bs.pathOwner[p.OutputPath] = "generated:" + p.URL
		bs.pages = append(bs.pages, p)
		bs.report.GeneratedPages++
	}
	return nil
}

func stageWritePages(ctx context.Context, bs *buildState) error {
	// Deterministic write order regardless of producer ordering.
	sort.Slice(bs.pages, func(i, j int) bool { return bs.pages[i].OutputPath < bs.pages[j].OutputPath })

	for _, p := range bs.pages {
		select {
		case <-ctx.Done():
			return newCanceledStageError(StageWritePages, ctx.Err())
		default:
		}

		data := p.HTML
		if bs.cfg.Build.CompressHTML && strings.HasSuffix(p.OutputPath, ".html") {
			compressed, err := minify.HTML(data)
			if err != nil {
				return newFatalStageError(StageWritePages,
					gerrors.Wrap(err, gerrors.CategoryEmit, gerrors.SeverityFatal, "compress "+p.OutputPath))
			}
			data = compressed
		}
		if err := bs.staging.WriteFile(p.OutputPath, data); err != nil {
			return newFatalStageError(StageWritePages, err)
		}
	}
	return nil
}

// stageCopyAssets copies static files through unchanged, then writes the
// generated client assets. The diagram script is always generator-owned
// so the skin mapping cannot drift from the build.
func stageCopyAssets(ctx context.Context, bs *buildState) error {
	for _, asset := range bs.loaded.Assets {
		select {
		case <-ctx.Done():
			return newCanceledStageError(StageCopyAssets, ctx.Err())
		default:
		}
		if err := bs.staging.CopyFile(asset.SourcePath, asset.RelPath); err != nil {
			return newFatalStageError(StageCopyAssets, err)
		}
	}

	if err := bs.staging.WriteFile("assets/js/diagrams.js", DiagramScript()); err != nil {
		return newFatalStageError(StageCopyAssets, err)
	}

	// A fallback stylesheet keeps the built-in layouts presentable when
	// the site ships no assets/css/site.css of its own.
	if !bs.hasAsset("assets/css/site.css") {
		if err := bs.staging.WriteFile("assets/css/site.css", []byte(fallbackStylesheet)); err != nil {
			return newFatalStageError(StageCopyAssets, err)
		}
	}
	return nil
}

func (bs *buildState) hasAsset(relPath string) bool {
	for _, a := range bs.loaded.Assets {
		if a.RelPath == relPath {
			return true
		}
	}
	return false
}

const fallbackStylesheet = `body { margin: 0 auto; max-width: 46rem; padding: 0 1rem; font-family: system-ui, sans-serif; line-height: 1.6; }
body.skin-dark, body.skin-plum, body.skin-contrast { background: #14161a; color: #d8dce2; }
body.skin-dark a, body.skin-plum a, body.skin-contrast a { color: #7ab4ff; }
.site-header { padding: 1rem 0; border-bottom: 1px solid #8884; }
.site-footer { padding: 1rem 0; border-top: 1px solid #8884; font-size: .9rem; }
.post-list { list-style: none; padding: 0; }
.post-list li { margin: 1rem 0; }
.pagination { display: flex; justify-content: space-between; margin: 2rem 0; }
.mermaid-error { color: #c0392b; white-space: pre-wrap; }
pre { overflow-x: auto; }
`
