// Package queue implements the Queue collaborator: receiving, deleting, and
// extending visibility of ingestion job messages.
package queue

import "context"

// Message is a single received queue message. ReceiptHandle identifies it
// for Delete/ExtendVisibility and is opaque to callers.
type Message struct {
	Body          string
	ReceiptHandle string
}

// Queue is the minimal operation set the consumer needs against a message
// broker.
type Queue interface {
	Receive(ctx context.Context) ([]Message, error)
	Delete(ctx context.Context, msg Message) error
	ExtendVisibility(ctx context.Context, msg Message, seconds int32) error
}

// Body is the parsed shape of a queue message's JSON body.
type Body struct {
	JobID int    `json:"job_id"`
	S3Key string `json:"s3_key"`
}
