package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrDeviceUnavailable   = errors.New("compute device unavailable")
	ErrFunctionNotFound    = errors.New("shader function not found")
	ErrBufferAllocation    = errors.New("buffer allocation failed")
	ErrModelNotFound       = errors.New("model asset not found")
	ErrRenderPassNotFound  = errors.New("render pass not found")
	ErrInvalidMeshData     = errors.New("invalid mesh data")
	ErrMultipleMeshes      = errors.New("more than one mesh where one was expected")
	ErrEntityNotFound      = errors.New("geometric entity not found")
	ErrInvalidEntity       = errors.New("invalid geometric entity")
	ErrPaletteOverflow     = errors.New("matrix palette buffer overflow")
	ErrInstanceOverflow    = errors.New("instance buffer overflow")
	ErrInstanceOutOfRange  = errors.New("instance index out of range")
	ErrFrameSlotRange      = errors.New("frame slot out of range")
	ErrPositionCycle       = errors.New("parent assignment would create a cycle")
	ErrPositionNotFound    = errors.New("relative position not found")
	ErrInvalidSkeleton     = errors.New("invalid skeleton")
	ErrInvalidSkin         = errors.New("invalid skin")
	ErrModuleExists        = errors.New("render module already registered")
	ErrModuleNotFound      = errors.New("render module not found")
	ErrModuleUninitialized = errors.New("render module not initialized")
	ErrUnknown             = errors.New("unknown")
)

// Severity classifies a recorded error.
type Severity uint8

const (
	// SeverityWarning is a runtime condition; the affected entity or draw
	// call is skipped for the current frame.
	SeverityWarning Severity = iota
	// SeverityFatal is a setup failure; the module stays disabled for the
	// rest of the session.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	default:
		return "warning"
	}
}

// ErrorKind names the failure independently from the wrapped cause.
type ErrorKind string

const (
	KindDeviceUnavailable ErrorKind = "device-unavailable"
	KindMissingFunction   ErrorKind = "missing-function"
	KindBufferAllocation  ErrorKind = "buffer-allocation"
	KindMissingModel      ErrorKind = "missing-model"
	KindRenderPass        ErrorKind = "render-pass-not-found"
	KindInvalidMesh       ErrorKind = "invalid-mesh"
	KindMultipleMeshes    ErrorKind = "multiple-meshes"
	KindMissingEntity     ErrorKind = "missing-entity"
	KindInvalidEntity     ErrorKind = "invalid-entity"
	KindPaletteOverflow   ErrorKind = "palette-overflow"
	KindInstanceOverflow  ErrorKind = "instance-overflow"
	KindModuleNotFound    ErrorKind = "module-not-found"
	KindUnknown           ErrorKind = "unknown"
)

// RenderError is the structured record carried to the diagnostics layer.
type RenderError struct {
	Severity Severity
	Module   string
	Kind     ErrorKind
	Entity   uuid.NullUUID
	Cause    error
}

// NewSetupError builds a fatal record for a module that failed to initialize.
func NewSetupError(module string, kind ErrorKind, cause error) *RenderError {
	return &RenderError{Severity: SeverityFatal, Module: module, Kind: kind, Cause: cause}
}

// NewWarning builds a runtime record, optionally tied to an entity.
func NewWarning(module string, kind ErrorKind, entity uuid.NullUUID, cause error) *RenderError {
	return &RenderError{Severity: SeverityWarning, Module: module, Kind: kind, Entity: entity, Cause: cause}
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("%s: %s [%s]", e.Module, e.Kind, e.Severity)
	if e.Entity.Valid {
		msg += fmt.Sprintf(" entity=%s", e.Entity.UUID)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// KindOf maps a sentinel cause to its error kind.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, ErrFunctionNotFound):
		return KindMissingFunction
	case errors.Is(err, ErrBufferAllocation):
		return KindBufferAllocation
	case errors.Is(err, ErrModelNotFound):
		return KindMissingModel
	case errors.Is(err, ErrRenderPassNotFound):
		return KindRenderPass
	case errors.Is(err, ErrInvalidMeshData):
		return KindInvalidMesh
	case errors.Is(err, ErrMultipleMeshes):
		return KindMultipleMeshes
	case errors.Is(err, ErrEntityNotFound):
		return KindMissingEntity
	case errors.Is(err, ErrInvalidEntity):
		return KindInvalidEntity
	case errors.Is(err, ErrPaletteOverflow):
		return KindPaletteOverflow
	case errors.Is(err, ErrInstanceOverflow):
		return KindInstanceOverflow
	case errors.Is(err, ErrModuleNotFound), errors.Is(err, ErrModuleUninitialized):
		return KindModuleNotFound
	default:
		return KindUnknown
	}
}
