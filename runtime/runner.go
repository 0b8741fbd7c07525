package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/sflowg/randomnode/runtime"

// Result is the output of one node invocation.
type Result struct {
	ExecutionID string   `json:"executionId"`
	Data        [][]Item `json:"data"`
}

// Runner invokes registered nodes on behalf of the host.
type Runner struct {
	l         *slog.Logger
	container *Container
	tracer    trace.Tracer

	invocations metric.Int64Counter
	items       metric.Int64Counter
	itemErrors  metric.Int64Counter
	duration    metric.Float64Histogram
}

func NewRunner(l *slog.Logger, container *Container) (*Runner, error) {
	if l == nil {
		l = slog.Default()
	}
	meter := otel.Meter(instrumentationName)

	invocations, err := meter.Int64Counter("node.invocations",
		metric.WithDescription("Node invocations by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create invocation counter: %w", err)
	}
	items, err := meter.Int64Counter("node.items",
		metric.WithDescription("Output records produced"))
	if err != nil {
		return nil, fmt.Errorf("failed to create item counter: %w", err)
	}
	itemErrors, err := meter.Int64Counter("node.item_errors",
		metric.WithDescription("Output records carrying an error"))
	if err != nil {
		return nil, fmt.Errorf("failed to create item error counter: %w", err)
	}
	duration, err := meter.Float64Histogram("node.duration",
		metric.WithDescription("Invocation duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &Runner{
		l:           l,
		container:   container,
		tracer:      otel.Tracer(instrumentationName),
		invocations: invocations,
		items:       items,
		itemErrors:  itemErrors,
		duration:    duration,
	}, nil
}

// Run executes the named node once over batch.
func (r *Runner) Run(ctx context.Context, nodeName string, batch Batch) (Result, error) {
	node, err := r.container.Node(nodeName)
	if err != nil {
		return Result{}, err
	}

	ctx, span := r.tracer.Start(ctx, "node.execute",
		trace.WithAttributes(
			attribute.String("node.name", nodeName),
			attribute.Int("batch.items", len(batch.Items)),
			attribute.Bool("batch.continue_on_fail", batch.ContinueOnFail),
		))
	defer span.End()

	exec := NewExecution(ctx, node.Description(), batch, r.l)
	span.SetAttributes(attribute.String("execution.id", exec.ID))

	r.l.InfoContext(exec, fmt.Sprintf("Executing node: %s", nodeName),
		"execution_id", exec.ID,
		"items", len(exec.Items),
		"continue_on_fail", batch.ContinueOnFail)

	start := time.Now()
	data, err := node.Execute(exec)
	elapsed := time.Since(start)

	nodeAttr := metric.WithAttributes(attribute.String("node.name", nodeName))
	r.duration.Record(ctx, float64(elapsed.Microseconds())/1000, nodeAttr)

	if err != nil {
		attrs := []any{
			"execution_id", exec.ID,
			"error", err.Error(),
			"kind", string(Kind(err)),
		}
		if opErr, ok := AsNodeOperationError(err); ok {
			if idx, ok := opErr.ItemIndex(); ok {
				attrs = append(attrs, "item_index", idx)
				span.SetAttributes(attribute.Int("error.item_index", idx))
			}
		}
		r.l.ErrorContext(exec, fmt.Sprintf("Node execution failed: %s", nodeName), attrs...)

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.invocations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("node.name", nodeName),
			attribute.String("outcome", "error")))
		return Result{ExecutionID: exec.ID}, err
	}

	var produced, failed int
	for _, output := range data {
		for _, item := range output {
			produced++
			if item.Error != nil {
				failed++
			} else if _, ok := item.JSON[ErrorKey]; ok {
				failed++
			}
		}
	}
	r.items.Add(ctx, int64(produced), nodeAttr)
	r.itemErrors.Add(ctx, int64(failed), nodeAttr)
	r.invocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node.name", nodeName),
		attribute.String("outcome", "success")))

	span.SetAttributes(
		attribute.Int("output.items", produced),
		attribute.Int("output.item_errors", failed),
	)
	span.SetStatus(codes.Ok, "node executed")

	r.l.InfoContext(exec, fmt.Sprintf("Node executed: %s", nodeName),
		"execution_id", exec.ID,
		"output_items", produced,
		"item_errors", failed,
		"duration_ms", elapsed.Milliseconds())

	return Result{ExecutionID: exec.ID, Data: data}, nil
}

// IsNodeNotFound reports whether err was caused by an unknown node name.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}
