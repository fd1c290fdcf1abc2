package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	options "github.com/kart-io/sentinel-rag/pkg/options/tracing"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *options.Options)
		wantErr bool
	}{
		{name: "disabled is valid", mutate: func(o *options.Options) { o.ExporterType = "bogus" }},
		{name: "enabled defaults", mutate: func(o *options.Options) { o.Enabled = true }},
		{name: "missing endpoint", mutate: func(o *options.Options) { o.Enabled = true; o.Endpoint = "" }, wantErr: true},
		{name: "stdout needs no endpoint", mutate: func(o *options.Options) {
			o.Enabled = true
			o.ExporterType = options.ExporterStdout
			o.Endpoint = ""
		}},
		{name: "bad ratio", mutate: func(o *options.Options) { o.Enabled = true; o.SamplerRatio = 1.5 }, wantErr: true},
		{name: "bad sampler", mutate: func(o *options.Options) { o.Enabled = true; o.SamplerType = "x" }, wantErr: true},
		{name: "zero timeout", mutate: func(o *options.Options) { o.Enabled = true; o.BatchTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := options.NewOptions()
			tt.mutate(o)
			errs := o.Validate()
			if tt.wantErr {
				assert.NotEmpty(t, errs)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), options.NewOptions())
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "op")
	assert.False(t, span.IsRecording())
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderRejectsInvalid(t *testing.T) {
	o := options.NewOptions()
	o.Enabled = true
	o.BatchTimeout = -time.Second
	_, err := NewProvider(context.Background(), o)
	assert.Error(t, err)
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), "rag", "retrieve")
	assert.NotEmpty(t, TraceIDFromContext(ctx))
	RecordError(ctx, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "retrieve", spans[0].Name())
	assert.Equal(t, "boom", spans[0].Status().Description)
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
