// Package random provides the Random node: a true random integer per input
// item, fetched from the random.org integer service.
package random

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sflowg/randomnode/runtime"
	"golang.org/x/time/rate"
)

// NodeName is the identifier the node is registered under.
const NodeName = "random"

// Output shapes.
const (
	ShapeMinimal  = "minimal"
	ShapeEnriched = "enriched"
)

// Output record fields.
const (
	FieldRandomNumber = "randomNumber"
	FieldParityLabel  = "parityLabel"
	FieldGeneratedAt  = "generatedAt"
)

const (
	ParityEven = "Even"
	ParityOdd  = "Odd"
)

// timestampLayout is ISO-8601 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// ErrMinimumExceedsMaximum is reported for items whose range is inverted.
var ErrMinimumExceedsMaximum = errors.New("minimum value cannot exceed maximum value")

var errNotInitialized = errors.New("random node is not initialized")

// Config holds the Random node configuration with declarative tags
type Config struct {
	BaseURL     string        `yaml:"base_url" default:"https://www.random.org" validate:"required,url_format"`
	Timeout     time.Duration `yaml:"timeout" default:"30s" validate:"gte=1s"`
	MaxRetries  int           `yaml:"max_retries" default:"0" validate:"gte=0,lte=10"`
	OutputShape string        `yaml:"output_shape" default:"enriched" validate:"oneof=minimal enriched"`
	Debug       bool          `yaml:"debug" default:"false"`

	// RateLimit caps outbound requests per second; 0 disables the limit.
	RateLimit float64 `yaml:"rate_limit" default:"0" validate:"gte=0"`
	Burst     int     `yaml:"burst" default:"1" validate:"gte=1"`
}

// Parameters are the per-item values the node reads.
type Parameters struct {
	MinimumValue int `json:"minimumValue"`
	MaximumValue int `json:"maximumValue"`
}

// RandomPlugin implements the Random node
type RandomPlugin struct {
	Config  Config // Exported so the container can prepare it at registration
	client  *resty.Client
	limiter *rate.Limiter // nil when unlimited
	now     func() time.Time
}

// New returns an uninitialized node; the container prepares Config and calls Initialize.
func New() *RandomPlugin {
	return &RandomPlugin{}
}

// Description returns the node registration metadata.
func (p *RandomPlugin) Description() runtime.NodeDescription {
	return runtime.NodeDescription{
		DisplayName: "Random",
		Name:        NodeName,
		Icon:        "file:random.svg",
		Group:       []string{"transform"},
		Version:     1,
		Description: "True Random Number Generator",
		Defaults:    runtime.NodeDefaults{Name: "Random"},
		Inputs:      []string{runtime.ConnectionMain},
		Outputs:     []string{runtime.ConnectionMain},
		Properties: []runtime.NodeProperty{
			{
				DisplayName: "Minimum Value",
				Name:        "minimumValue",
				Type:        "number",
				Default:     1,
				Required:    true,
				Description: "Lowest value the random number may take",
			},
			{
				DisplayName: "Maximum Value",
				Name:        "maximumValue",
				Type:        "number",
				Default:     100,
				Required:    true,
				Description: "Highest value the random number may take",
			},
		},
	}
}

// Initialize implements the runtime.Initializer interface
// Config is already validated by the container before this is called
func (p *RandomPlugin) Initialize(ctx context.Context) error {
	p.client = resty.New().
		SetBaseURL(strings.TrimRight(p.Config.BaseURL, "/")).
		SetTimeout(p.Config.Timeout).
		SetRetryCount(p.Config.MaxRetries).
		SetDebug(p.Config.Debug).
		SetHeader("Accept", "text/plain")

	if p.Config.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(p.Config.RateLimit), p.Config.Burst)
	}

	if p.now == nil {
		p.now = time.Now
	}
	return nil
}

// Shutdown implements the runtime.Shutdowner interface
func (p *RandomPlugin) Shutdown(ctx context.Context) error {
	p.client = nil
	p.limiter = nil
	return nil
}

// Execute processes the batch item by item, in order, one outbound call per
// item with a valid range.
func (p *RandomPlugin) Execute(exec *runtime.Execution) ([][]runtime.Item, error) {
	if p.client == nil {
		return nil, runtime.NewNodeOperationError(NodeName, errNotInitialized)
	}

	items := exec.InputData()
	out := make([]runtime.Item, 0, len(items))

	for i := range items {
		if err := exec.Err(); err != nil {
			return nil, runtime.WrapItemError(NodeName, err, i)
		}

		record, err := p.processItem(exec, i)
		if err != nil {
			if exec.ContinueOnFail() {
				exec.Logger.WarnContext(exec, "Item failed, continuing",
					"item_index", i,
					"kind", string(runtime.Kind(err)),
					"error", err)
				out = append(out, exec.ErrorItem(i, err))
				continue
			}
			return nil, runtime.WrapItemError(NodeName, err, i)
		}

		out = append(out, runtime.NewItem(record))
	}

	return exec.PrepareOutputData(out), nil
}

func (p *RandomPlugin) processItem(exec *runtime.Execution, i int) (map[string]any, error) {
	var params Parameters
	if err := exec.DecodeParameters(i, &params); err != nil {
		return nil, err
	}

	// An inverted range is reported as data for this item; later items still run.
	if params.MinimumValue > params.MaximumValue {
		exec.Logger.InfoContext(exec, "Skipping item with inverted range",
			"item_index", i,
			"minimum", params.MinimumValue,
			"maximum", params.MaximumValue)
		return map[string]any{runtime.ErrorKey: ErrMinimumExceedsMaximum.Error()}, nil
	}

	n, err := p.fetch(exec, params.MinimumValue, params.MaximumValue)
	if err != nil {
		return nil, err
	}

	return p.shape(n), nil
}

// RequestPath returns the service path and query for one integer in [minimum, maximum].
// The parameter order is fixed.
func RequestPath(minimum, maximum int) string {
	return fmt.Sprintf("/integers/?num=1&min=%d&max=%d&col=1&base=10&format=plain&rnd=new", minimum, maximum)
}

func (p *RandomPlugin) fetch(ctx context.Context, minimum, maximum int) (int, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	resp, err := p.client.R().
		SetContext(ctx).
		Get(RequestPath(minimum, maximum))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", runtime.ErrNetwork, err)
	}

	if !resp.IsSuccess() {
		return 0, fmt.Errorf("%w: unexpected status %s: %s",
			runtime.ErrNetwork, resp.Status(), truncate(strings.TrimSpace(resp.String()), 200))
	}

	return parseInteger(resp.String())
}

// parseInteger reads the plain-text body as one base-10 integer.
func parseInteger(body string) (int, error) {
	trimmed := strings.TrimSpace(body)
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a base-10 integer", runtime.ErrParse, truncate(trimmed, 64))
	}
	return n, nil
}

func (p *RandomPlugin) shape(n int) map[string]any {
	record := map[string]any{FieldRandomNumber: n}
	if p.Config.OutputShape == ShapeMinimal {
		return record
	}

	record[FieldParityLabel] = parityLabel(n)
	record[FieldGeneratedAt] = p.now().UTC().Format(timestampLayout)
	return record
}

func parityLabel(n int) string {
	if n%2 == 0 {
		return ParityEven
	}
	return ParityOdd
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
