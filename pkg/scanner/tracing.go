package scanner

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sysdig/attachment-virus-scanner/pkg/storage"
)

const tracerName = "github.com/sysdig/attachment-virus-scanner/pkg/scanner"

// Tracing records a span per resource scan with a child span per asset
type Tracing struct {
	tracer trace.Tracer
}

// NewTracing creates the addon. A nil tracer uses the global provider.
func NewTracing(tracer trace.Tracer) *Tracing {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Tracing{tracer: tracer}
}

func (t *Tracing) Name() string {
	return AddonTracing
}

func (t *Tracing) Attach(s *Scanner) error {
	var (
		processCtx  context.Context
		processSpan trace.Span
		scanSpan    trace.Span
	)

	err := s.BeforeProcessScan(func(interface{}) error {
		processCtx, processSpan = t.tracer.Start(s.Context(), "antivirus.process_scan",
			trace.WithAttributes(attribute.String("antivirus.scanner", s.Type())))
		return nil
	})
	if err != nil {
		return err
	}

	err = s.BeforeScan(func(p *storage.Processable) error {
		parent := processCtx
		if parent == nil {
			parent = s.Context()
		}
		_, scanSpan = t.tracer.Start(parent, "antivirus.scan",
			trace.WithAttributes(attribute.String("antivirus.storage", p.Storage().Type())))
		return nil
	})
	if err != nil {
		return err
	}

	err = s.AfterScan(func(*storage.Processable) error {
		if scanSpan != nil {
			scanSpan.SetAttributes(attribute.StringSlice("antivirus.errors", s.errors.Strings()))
			scanSpan.End()
			scanSpan = nil
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Spans left open by a failing callable are closed here
	s.OnFinish(func(infected bool, scanErr error) {
		if scanSpan != nil {
			scanSpan.End()
			scanSpan = nil
		}
		if processSpan == nil {
			return
		}
		processSpan.SetAttributes(
			attribute.Bool("antivirus.infected", infected),
			attribute.StringSlice("antivirus.errors", s.errors.Strings()),
		)
		if scanErr != nil {
			processSpan.RecordError(scanErr)
			processSpan.SetStatus(codes.Error, scanErr.Error())
		}
		processSpan.End()
		processSpan, processCtx = nil, nil
	})

	return nil
}
