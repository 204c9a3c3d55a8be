package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrRejected indica que o cliente excedeu a cota da janela.
// Não é falha de software: é um desfecho normal, mapeado para 429 no HTTP.
var ErrRejected = errors.New("too many requests")

// RejectedError detalha uma rejeição. errors.Is(err, ErrRejected) é true.
type RejectedError struct {
	Key        Key
	RetryAfter time.Duration
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("too many requests from %q (retry after %s)", e.Key, e.RetryAfter)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// PanicError embrulha um panic recuperado de um handler ou computação.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("handler panic: %v", e.Value) }

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
