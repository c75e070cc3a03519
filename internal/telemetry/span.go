package telemetry

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetSpanAttribute JSON-encodes value and attaches it to span under key,
// the way SetSpanAttributesFromStruct records a whole request/response
// payload on one span instead of one attribute per field.
func SetSpanAttribute(span trace.Span, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("telemetry: encoding span attribute %q: %w", key, err)
	}

	span.SetAttributes(attribute.String(key, string(encoded)))

	return nil
}

// RecordSpanError marks span as failed and records err on it.
func RecordSpanError(span trace.Span, message string, err error) {
	span.SetStatus(codes.Error, message+": "+err.Error())
	span.RecordError(err)
}
