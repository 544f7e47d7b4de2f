// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/blinklabs-io/zkcircles/database")

// startOp opens a span for a gateway operation. The returned func records
// the outcome on the span and in the operation metrics
func (d *Database) startOp(
	ctx context.Context,
	op string,
	circleID string,
) (context.Context, func(*error)) {
	var opts []trace.SpanStartOption
	if circleID != "" {
		opts = append(
			opts,
			trace.WithAttributes(attribute.String("circle.id", circleID)),
		)
	}
	ctx, span := tracer.Start(ctx, "database."+op, opts...)
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, op+" failed")
		}
		span.End()
		d.observe(op, err)
	}
}
