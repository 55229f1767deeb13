package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"floroexpress/internal/domain"
)

// Client analyzes documents with a Generator and always produces a result:
// generation and parse failures yield the category's canned result.
type Client struct {
	gen        Generator
	settings   domain.AnalysisSettings
	retryDelay time.Duration
	logger     *zap.Logger
	pageCount  func(path string) (int, error)
}

// NewClient creates a client. gen may be nil, in which case every document
// gets the canned result of its category.
func NewClient(gen Generator, settings domain.AnalysisSettings, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.ChunkSize <= 0 {
		settings.ChunkSize = 4000
	}
	if settings.MaxChunks <= 0 {
		settings.MaxChunks = 3
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	return &Client{
		gen:        gen,
		settings:   settings,
		retryDelay: 500 * time.Millisecond,
		logger:     logger.Named("analysis"),
		pageCount:  api.PageCountFile,
	}
}

// Analyze classifies doc, asks the generator about each content chunk and
// merges the replies. Only context cancellation is returned as an error.
func (c *Client) Analyze(ctx context.Context, doc domain.DocumentDescriptor) (domain.AnalysisResult, error) {
	fileType := Classify(doc)
	if err := ctx.Err(); err != nil {
		return domain.AnalysisResult{}, err
	}
	if c.gen == nil {
		return Fallback(fileType), nil
	}

	req := c.describe(doc)
	prompts := c.prompts(fileType, req)

	replies := make([]reply, len(prompts))
	g, gctx := errgroup.WithContext(ctx)
	for i, prompt := range prompts {
		i, prompt := i, prompt
		g.Go(func() error {
			r, err := c.generate(gctx, prompt)
			if err != nil {
				return err
			}
			replies[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.AnalysisResult{}, ctxErr
		}
		c.logger.Warn("analysis failed, using canned result",
			zap.String("document", doc.Name),
			zap.String("file_type", string(fileType)),
			zap.Error(err),
		)
		return Fallback(fileType), nil
	}

	return merge(fileType, replies), nil
}

// describe collects the metadata sent with the prompt. Extraction problems
// are logged and leave the field empty.
func (c *Client) describe(doc domain.DocumentDescriptor) Request {
	req := Request{
		Name:         doc.Name,
		Type:         doc.Type,
		Size:         doc.Size,
		LastModified: doc.LastModified,
	}
	if doc.Path == "" {
		return req
	}

	mime := strings.ToLower(doc.Type)
	var err error
	switch {
	case strings.HasPrefix(mime, "text/") || mime == "application/json":
		req.Content, err = c.readText(doc.Path)
	case strings.HasPrefix(mime, "image/"):
		req.Width, req.Height, err = imageSize(doc.Path)
	case mime == "application/pdf":
		req.Pages, err = c.pageCount(doc.Path)
	}
	if err != nil {
		c.logger.Warn("extract metadata",
			zap.String("document", doc.Name),
			zap.Error(&Error{Stage: StageExtract, Message: "cannot read document", Err: err}),
		)
	}
	return req
}

// readText reads no more than the analyzed chunks could use.
func (c *Client) readText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	limit := int64(c.settings.ChunkSize*c.settings.MaxChunks) * 4
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// prompts renders one prompt per content chunk, or a single metadata-only
// prompt when there is no text content.
func (c *Client) prompts(fileType domain.FileType, req Request) []string {
	chunks := splitChunks(req.Content, c.settings.ChunkSize, c.settings.MaxChunks)
	if len(chunks) == 0 {
		return []string{BuildPrompt(fileType, req)}
	}

	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		chunkReq := req
		chunkReq.Content = chunk
		out = append(out, BuildPrompt(fileType, chunkReq))
	}
	return out
}

// generate calls the generator with a per-call timeout and one retry.
func (c *Client) generate(ctx context.Context, prompt string) (reply, error) {
	op := func() (reply, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.settings.Timeout)
		defer cancel()

		raw, err := c.gen.Generate(callCtx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return reply{}, backoff.Permanent(ctx.Err())
			}
			return reply{}, &Error{Stage: StageGenerate, Message: "generation failed", Err: err}
		}

		r, err := parseReply(raw)
		if err != nil {
			return reply{}, &Error{Stage: StageParse, Message: "invalid reply", Err: err}
		}
		return r, nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), 1),
		ctx,
	)
	return backoff.RetryWithData(op, policy)
}

// reply is one parsed generator answer.
type reply struct {
	Analysis     string
	Improvements []string
	Settings     map[string]string
}

type rawReply struct {
	Analysis     string              `json:"analysis"`
	Improvements domain.Improvements `json:"improvements"`
	Settings     map[string]any      `json:"settings"`
}

// parseReply decodes {analysis, improvements, settings}, tolerating code
// fences and non-string setting values.
func parseReply(raw string) (reply, error) {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)
	if body == "" {
		return reply{}, errors.New("empty reply")
	}

	var decoded rawReply
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return reply{}, err
	}

	settings := map[string]string{
		"quality":     "Standard",
		"colorMode":   "Auto",
		"paperSize":   "A4",
		"orientation": "Portrait",
	}
	for key, value := range decoded.Settings {
		if s := settingString(value); s != "" {
			settings[key] = s
		}
	}

	return reply{
		Analysis:     strings.TrimSpace(decoded.Analysis),
		Improvements: lo.Compact([]string(decoded.Improvements)),
		Settings:     settings,
	}, nil
}

func settingString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// merge combines chunk replies in order and applies category overrides.
func merge(fileType domain.FileType, replies []reply) domain.AnalysisResult {
	settings := map[string]string{
		"quality":     "High",
		"colorMode":   "Auto",
		"paperSize":   "Auto",
		"orientation": "Auto",
	}
	var improvements, analyses []string
	for _, r := range replies {
		improvements = append(improvements, r.Improvements...)
		for k, v := range r.Settings {
			settings[k] = v
		}
		if r.Analysis != "" {
			analyses = append(analyses, r.Analysis)
		}
	}

	switch fileType {
	case domain.FileTypePicture:
		settings["quality"] = "Photo Quality"
		settings["colorMode"] = "Full Color"
	case domain.FileTypeSecure:
		settings["quality"] = "High"
		settings["colorMode"] = "Grayscale"
	case domain.FileTypeBlueprint:
		settings["quality"] = "High"
		settings["paperSize"] = "A2"
		settings["orientation"] = "Landscape"
	default:
		settings["quality"] = "Standard"
		settings["colorMode"] = "Black & White"
	}

	analysis := strings.Join(analyses, "\n")
	if analysis == "" {
		analysis = DefaultAnalysis
	}
	return domain.AnalysisResult{
		FileType:     fileType,
		Analysis:     analysis,
		Improvements: domain.Improvements(lo.Uniq(improvements)),
		Settings:     settings,
	}
}

// NewClientForTests creates a client with injectable collaborators.
func NewClientForTests(
	gen Generator,
	settings domain.AnalysisSettings,
	retryDelay time.Duration,
	pageCount func(path string) (int, error),
) *Client {
	c := NewClient(gen, settings, nil)
	c.retryDelay = retryDelay
	if pageCount != nil {
		c.pageCount = pageCount
	}
	return c
}
