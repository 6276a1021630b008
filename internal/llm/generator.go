package llm

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/czt0517/vulbench/internal/dataset"
)

// DefaultCWEs are the memory-safety CWEs the experiments target.
var DefaultCWEs = []string{
	"CWE-119", // buffer errors
	"CWE-125", // out-of-bounds read
	"CWE-787", // out-of-bounds write
	"CWE-416", // use after free
	"CWE-476", // NULL dereference
	"CWE-190", // integer overflow
}

// Sample is one generated function with its provenance.
type Sample struct {
	Code       string
	CWE        string // empty for benign samples
	IsComplete bool
	Model      string
}

// Generator runs sample generation on a bounded worker pool behind a
// client-side requests-per-minute limiter.
type Generator struct {
	client  *Client
	limiter *rate.Limiter
	workers int
	logger  *logrus.Entry
}

// NewGenerator wires a generator. rpm <= 0 disables throttling;
// workers <= 0 falls back to 4.
func NewGenerator(client *Client, rpm, workers int, log *logrus.Logger) *Generator {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rpm > 0 {
		// Burst 1: the point is smoothing, not bursting up to the cap.
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
	}
	if workers <= 0 {
		workers = 4
	}
	return &Generator{
		client:  client,
		limiter: limiter,
		workers: workers,
		logger:  log.WithField("component", "generator"),
	}
}

// GenerateVulnerable produces perCWE samples for every CWE in cwes.
// Individual request failures are logged and skipped; the batch only
// fails when the context does.
func (g *Generator) GenerateVulnerable(ctx context.Context, cwes []string, perCWE int) ([]Sample, error) {
	type task struct{ cwe string }
	tasks := make([]task, 0, len(cwes)*perCWE)
	for _, cwe := range cwes {
		for i := 0; i < perCWE; i++ {
			tasks = append(tasks, task{cwe: cwe})
		}
	}
	return g.run(ctx, len(tasks), func(i int) (Sample, error) {
		cwe := tasks[i].cwe
		text, err := g.client.Chat(ctx, systemPrompt, vulnerablePrompt(cwe))
		if err != nil {
			return Sample{}, err
		}
		return g.toSample(text, cwe), nil
	})
}

// GenerateBenign produces n non-vulnerable samples.
func (g *Generator) GenerateBenign(ctx context.Context, n int) ([]Sample, error) {
	return g.run(ctx, n, func(int) (Sample, error) {
		text, err := g.client.Chat(ctx, systemPrompt, benignPrompt)
		if err != nil {
			return Sample{}, err
		}
		return g.toSample(text, ""), nil
	})
}

func (g *Generator) run(ctx context.Context, n int, gen func(i int) (Sample, error)) ([]Sample, error) {
	var (
		mu      sync.Mutex
		samples []Sample
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

	for i := 0; i < n; i++ {
		i := i
		eg.Go(func() error {
			if err := g.limiter.Wait(ctx); err != nil {
				return err // context cancelled or deadline passed
			}
			s, err := gen(i)
			if err != nil {
				g.logger.WithError(err).WithField("request", i).Warn("generation request failed, skipping")
				return nil
			}
			mu.Lock()
			samples = append(samples, s)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return samples, err
	}
	g.logger.WithFields(logrus.Fields{"requested": n, "got": len(samples)}).Info("generation batch done")
	return samples, nil
}

func (g *Generator) toSample(text, cwe string) Sample {
	code := dataset.CleanCode(ExtractCodeBlock(text))
	return Sample{
		Code:       code,
		CWE:        cwe,
		IsComplete: IsCompleteFunction(code),
		Model:      g.client.Model(),
	}
}

var fenceRe = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9]*)\n(.*?)```")

// ExtractCodeBlock pulls the first fenced code block out of a chat
// completion. When no fence is present the whole text is assumed to be
// code (some models ignore the format instruction).
func ExtractCodeBlock(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// IsCompleteFunction applies a cheap shape check: a parameter list
// before the first brace, balanced braces, at least one statement.
// Incomplete generations are kept in the CSV but flagged so the
// augment step can filter them.
func IsCompleteFunction(code string) bool {
	if code == "" {
		return false
	}
	open := strings.Index(code, "{")
	paren := strings.Index(code, "(")
	if open < 0 || paren < 0 || paren > open {
		return false
	}

	depth := 0
	for _, r := range code {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0 && strings.Contains(code, ";")
}

// WriteSamplesCSV writes generated samples in the synthetic-CSV layout
// consumed by the augment command.
func WriteSamplesCSV(path string, samples []Sample) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"processed_func", "cwe", "is_complete", "model"}); err != nil {
		return 0, err
	}
	written := 0
	for _, s := range samples {
		if s.Code == "" {
			continue
		}
		if err := w.Write([]string{s.Code, s.CWE, strconv.FormatBool(s.IsComplete), s.Model}); err != nil {
			return written, err
		}
		written++
	}
	w.Flush()
	return written, w.Error()
}
