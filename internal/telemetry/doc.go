// Package telemetry provides OpenTelemetry instrumentation for commitd.
//
// It manages TracerProvider, MeterProvider, and graceful shutdown. OTLP
// export supports grpc and http/protobuf protocols. Telemetry failures
// never crash the pipeline; the instance degrades to no-op providers.
package telemetry
