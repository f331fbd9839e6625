// Package errs implements the container's error taxonomy: configuration
// errors (synchronous to the installer), dependency-unavailable signals,
// start/stop failures, and internal contract violations, all carrying
// enough structured context for callers to branch on with errors.Is/As.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy buckets from the
// error-handling design: configuration errors are recoverable by fixing
// and retrying the install; dependency-unavailable is not a failure at
// all; start/stop failures are runtime service faults; contract
// violations indicate caller misuse of the API.
type Kind string

const (
	KindConfiguration      Kind = "configuration"
	KindDependencyMissing  Kind = "dependency_unavailable"
	KindStartFailure       Kind = "start_failure"
	KindStopFailure        Kind = "stop_failure"
	KindContractViolation  Kind = "contract_violation"
)

// Error is the container's structured error type. Original holds the
// underlying cause when one exists (e.g. the panic recovered from a
// user Service.Start). Code discriminates one specific failure mode from
// another sharing the same Kind bucket (e.g. duplicate-provider from
// cycle, both KindConfiguration); Kind alone is too coarse for
// errors.Is to tell them apart.
type Error struct {
	Kind      Kind
	Code      string
	Operation string
	Service   string
	Message   string
	Original  error
}

func (e *Error) Error() string {
	if e.Service != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s(%s): %s", e.Kind, e.Operation, e.Service, e.msg())
	}
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Operation, e.msg())
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.msg())
}

func (e *Error) msg() string {
	if e.Original != nil {
		if e.Message != "" {
			return e.Message + ": " + e.Original.Error()
		}
		return e.Original.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Original }

// Is reports Code-based equivalence so callers can write
// errors.Is(err, errs.ErrCycle) style checks against the sentinels below
// without one KindConfiguration sentinel matching another's errors.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

func newErr(kind Kind, code, op, service, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Operation: op, Service: service, Message: msg, Original: cause}
}

const (
	codeDuplicateProvider     = "duplicate_provider"
	codeCycle                 = "cycle"
	codeRequireAndProvide     = "require_and_provide"
	codeForeignThread         = "foreign_thread"
	codeNilArgument           = "nil_argument"
	codeAlreadyInstalled      = "already_installed"
	codeDependencyUnavailable = "dependency_unavailable"
	codeStartFailure          = "start_failure"
	codeStopFailure           = "stop_failure"
	codeContractViolation     = "contract_violation"
)

// Sentinels for the common configuration-time failure modes named in
// spec §7, each matched on its own Code via Error.Is so they never
// collapse into one another despite sharing KindConfiguration.
var (
	ErrDuplicateProvider = &Error{Kind: KindConfiguration, Code: codeDuplicateProvider, Message: "duplicate provider"}
	ErrCycle             = &Error{Kind: KindConfiguration, Code: codeCycle, Message: "cycle detected"}
	ErrRequireAndProvide = &Error{Kind: KindConfiguration, Code: codeRequireAndProvide, Message: "name both required and provided"}
	ErrForeignThread     = &Error{Kind: KindConfiguration, Code: codeForeignThread, Message: "builder touched by foreign thread"}
	ErrNilArgument       = &Error{Kind: KindConfiguration, Code: codeNilArgument, Message: "nil argument"}
	ErrAlreadyInstalled  = &Error{Kind: KindConfiguration, Code: codeAlreadyInstalled, Message: "builder already installed"}
)

// DuplicateProvider reports that name already has a committed provider.
func DuplicateProvider(name string) error {
	return newErr(KindConfiguration, codeDuplicateProvider, "install", name, "a provider is already registered for this name", nil)
}

// RequireAndProvide reports a builder that both requires and provides name.
func RequireAndProvide(name string) error {
	return newErr(KindConfiguration, codeRequireAndProvide, "install", name, "name cannot be both required and provided by the same service", nil)
}

// Cycle wraps the ordered cycle path discovered during install-time DFS.
//
// The wrapped *Error is held as a named field rather than embedded: an
// anonymous *Error field would be named Error (same as its type), which
// shadows the promoted Error() method and makes *Cycle fail to satisfy
// the error interface. Error, Unwrap, and Is are forwarded explicitly
// instead to preserve the same errors.Is/As behavior as embedding would.
type Cycle struct {
	err  *Error
	path []string
}

func NewCycle(path []string) *Cycle {
	return &Cycle{
		err:  newErr(KindConfiguration, codeCycle, "install", "", fmt.Sprintf("dependency cycle: %v", path), nil),
		path: path,
	}
}

// Path returns the cycle in dependency order.
func (c *Cycle) Path() []string { return c.path }

func (c *Cycle) Error() string { return c.err.Error() }

func (c *Cycle) Unwrap() error { return c.err }

func (c *Cycle) Is(target error) bool { return c.err.Is(target) }

// DependencyUnavailable builds the (non-failure) error describing a
// service whose required names are not currently satisfied. No container
// or controller method returns it; Controller.Missing reports the names.
func DependencyUnavailable(service string, missing []string) error {
	return newErr(KindDependencyMissing, codeDependencyUnavailable, "resolve", service, fmt.Sprintf("missing: %v", missing), nil)
}

// StartFailure wraps the cause a Service.Start reported via fail() or
// returned/panicked with, for storage as a controller's start_exception.
func StartFailure(service string, cause error) error {
	return newErr(KindStartFailure, codeStartFailure, "start", service, "start failed", cause)
}

// StopFailure wraps a stop-time error. Per spec §7 this is always logged
// and never fails the lifecycle; it exists so the log record is typed.
func StopFailure(service string, cause error) error {
	return newErr(KindStopFailure, codeStopFailure, "stop", service, "stop failed", cause)
}

// ContractViolation reports caller misuse: double-complete, writing a
// value cell outside the start/stop window, etc.
func ContractViolation(operation, service, msg string) error {
	return newErr(KindContractViolation, codeContractViolation, operation, service, msg, nil)
}

// Is reports whether the first *Error in err's chain has the given Kind;
// *Error values wrapped further down the chain are not consulted.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
