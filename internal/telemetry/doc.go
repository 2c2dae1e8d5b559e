// Package telemetry wires OpenTelemetry tracing and metrics for campusconnect.
//
// Spans and instruments are exported over OTLP (gRPC or HTTP/protobuf) when
// enabled. When disabled, or when an exporter cannot be built, Tracer and
// Meter fall back to the global no-op providers and the service keeps
// running.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	svc := matching.NewService(src, matching.WithTracer(tt.Tracer("matching")))
//	...
//	tt.AssertSpanExists(t, "matching.GetSmartMatches")
package telemetry
