// Package transport defines the contract shared by the request-facing
// transports (gRPC and HTTP).
//
// Transports decode requests, call the Service and encode the result. They
// never touch the synthesis engines directly.
package transport

import (
	"context"
	"errors"

	"github.com/nadzzz/podsite/internal/audio"
	"github.com/nadzzz/podsite/internal/dispatch"
	"github.com/nadzzz/podsite/internal/message"
	"github.com/nadzzz/podsite/internal/tts"
)

// Service is what a transport exposes. *dispatch.Dispatcher implements it.
type Service interface {
	Generate(ctx context.Context, req *message.GenerateRequest) (*message.GenerateResult, error)
	SetReferenceAudio(ctx context.Context, path string) error
}

var _ Service = (*dispatch.Dispatcher)(nil)

// Transport is the interface every transport adapter implements.
type Transport interface {
	// Name returns the transport identifier ("grpc", "http").
	Name() string

	// Listen starts accepting requests and hands them to svc.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, svc Service) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}

// Kind classifies a Service error for status mapping.
type Kind int

// Error kinds, from most to least specific.
const (
	KindInternal Kind = iota
	KindBusy
	KindInvalid
	KindNotFound
	KindUnavailable
)

// Classify maps a Service error to a Kind.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, dispatch.ErrBusy):
		return KindBusy
	case errors.Is(err, dispatch.ErrInvalidRequest), errors.Is(err, dispatch.ErrUnknownEngine),
		errors.Is(err, audio.ErrInvalidWAV):
		return KindInvalid
	case errors.Is(err, tts.ErrReferenceNotFound):
		return KindNotFound
	case errors.Is(err, dispatch.ErrEngineUnavailable), errors.Is(err, tts.ErrUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}
