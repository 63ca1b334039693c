package banking

import "errors"

var (
	// ErrNoPools is returned when a settlement is requested over no input.
	ErrNoPools = errors.New("banking: no input pools")
	// ErrEmptyUnit is returned when a pool names no billing unit.
	ErrEmptyUnit = errors.New("banking: empty billing unit")
	// ErrEmptySlot is returned when a pool names no slot.
	ErrEmptySlot = errors.New("banking: empty slot")
	// ErrZeroDate is returned when a pool carries no settlement date.
	ErrZeroDate = errors.New("banking: zero settlement date")
	// ErrNegativeInput is returned when an input pool is negative.
	ErrNegativeInput = errors.New("banking: negative input pool")
	// ErrPoolOverdraw is returned when a stage would drive a pool
	// negative beyond the rounding tolerance.
	ErrPoolOverdraw = errors.New("banking: pool overdraw beyond tolerance")
	// ErrConservation is returned when a stage breaks pool conservation.
	ErrConservation = errors.New("banking: stage conservation violated")
)
