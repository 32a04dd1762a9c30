// Package geo turns device location requests into timestamped fixes and
// computes leg mileage from a pair of fixes.
package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pkordes/visit-tracker/internal/domain"
)

// DefaultTimeout bounds a single capture. Device location APIs can hang
// indefinitely when no fix is available.
const DefaultTimeout = 15 * time.Second

// Intent says why a fix is being captured.
type Intent string

const (
	IntentStartDrive Intent = "start_drive"
	IntentArrived    Intent = "arrived"
	IntentLeave      Intent = "leave"
	IntentReturn     Intent = "return"
)

// Fix is a captured coordinate and the moment it was taken.
type Fix struct {
	domain.Point
	Timestamp time.Time
	Intent    Intent
}

// Locator is the device location API. Implementations should return a
// *CaptureError when they know why they failed; any other error is classified
// by Classify.
type Locator interface {
	Locate(ctx context.Context) (domain.Point, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (domain.Point, error)

// Locate calls f(ctx).
func (f LocatorFunc) Locate(ctx context.Context) (domain.Point, error) {
	return f(ctx)
}

// StaticLocator always reports the same point. Used for manual entry.
type StaticLocator domain.Point

// Locate returns the fixed point.
func (s StaticLocator) Locate(context.Context) (domain.Point, error) {
	return domain.Point(s), nil
}

// Capturer wraps a Locator with a bounded wait and error classification.
type Capturer struct {
	Locator Locator
	Timeout time.Duration
	// Secure reports whether the calling context may use location at all.
	// Browsers only expose geolocation to secure (https) origins.
	Secure bool
	// Now is the clock used to stamp fixes; defaults to time.Now.
	Now func() time.Time
}

// NewCapturer returns a Capturer for a secure context with DefaultTimeout.
func NewCapturer(l Locator) *Capturer {
	return &Capturer{Locator: l, Timeout: DefaultTimeout, Secure: true}
}

// Capture requests one fix. It never retries; a failed capture returns a
// *CaptureError the caller shows to the user, who may try again.
func (c *Capturer) Capture(ctx context.Context, intent Intent) (Fix, error) {
	if !c.Secure {
		return Fix{}, &CaptureError{Kind: InsecureContext, Intent: intent}
	}
	if c.Locator == nil {
		return Fix{}, &CaptureError{Kind: Unsupported, Intent: intent}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		p   domain.Point
		err error
	}
	// Buffered so the locator goroutine never blocks after a timeout.
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("locator panic: %v", r)}
			}
		}()
		p, err := c.Locator.Locate(ctx)
		done <- result{p: p, err: err}
	}()

	select {
	case <-ctx.Done():
		return Fix{}, classify(ctx.Err(), intent)
	case r := <-done:
		if r.err != nil {
			return Fix{}, classify(r.err, intent)
		}
		if !r.p.Valid() {
			return Fix{}, &CaptureError{Kind: Unavailable, Intent: intent,
				Err: fmt.Errorf("coordinates out of range: %v,%v", r.p.Latitude, r.p.Longitude)}
		}
		return Fix{Point: r.p, Timestamp: c.now(), Intent: intent}, nil
	}
}

func (c *Capturer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

// ErrorKind is the closed set of capture failure classes.
type ErrorKind int

const (
	Timeout ErrorKind = iota + 1
	PermissionDenied
	Unsupported
	InsecureContext
	// Unavailable means the device answered but had no usable position.
	Unavailable
	// Canceled means the caller gave up on the capture, not the device.
	Canceled
)

func (k ErrorKind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case PermissionDenied:
		return "permission_denied"
	case Unsupported:
		return "unsupported"
	case InsecureContext:
		return "insecure_context"
	case Unavailable:
		return "unavailable"
	case Canceled:
		return "canceled"
	}
	return "unknown"
}

// Sentinel errors a Locator may return (or wrap) to name its failure.
var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnsupported      = errors.New("location not supported on this device")
	ErrUnavailable      = errors.New("location unavailable")
)

// CaptureError is a classified capture failure. Every kind is recoverable by
// a manual retry.
type CaptureError struct {
	Kind   ErrorKind
	Intent Intent
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geo: capture %s: %s: %v", e.Intent, e.Kind, e.Err)
	}
	return fmt.Sprintf("geo: capture %s: %s", e.Intent, e.Kind)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// KindOf returns the classified kind of err, or 0 if err is not a capture error.
func KindOf(err error) ErrorKind {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// classify maps a locator or context error into a *CaptureError.
func classify(err error, intent Intent) *CaptureError {
	var ce *CaptureError
	if errors.As(err, &ce) {
		if ce.Intent == "" {
			ce.Intent = intent
		}
		return ce
	}

	kind := Unavailable
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = Timeout
	case errors.Is(err, context.Canceled):
		kind = Canceled
	case errors.Is(err, ErrPermissionDenied):
		kind = PermissionDenied
	case errors.Is(err, ErrUnsupported):
		kind = Unsupported
	}
	return &CaptureError{Kind: kind, Intent: intent, Err: err}
}
