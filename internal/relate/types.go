package relate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMissingIdentity = errors.New("record has no id")
	ErrSelfReference   = errors.New("record cannot be related to itself")
	ErrInvalidRole     = errors.New("role must be father or mother")
)

// Store is the record store adapter the mutator writes through. Handles are
// vault-relative note paths.
type Store interface {
	ListRecords(ctx context.Context, kind string) ([]string, error)
	ReadFields(ctx context.Context, handle string) (map[string]any, error)
	WriteFields(ctx context.Context, handle string, fn func(map[string]any) error) error
	ResolveDisplayName(ctx context.Context, handle string) (string, error)
	ResolvePath(ctx context.Context, handle string) (string, error)
}

type Role string

const (
	RoleFather Role = "father"
	RoleMother Role = "mother"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleFather, RoleMother:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

type Op string

const (
	OpAddParent       Op = "add_parent"
	OpAddSpouse       Op = "add_spouse"
	OpAddChild        Op = "add_child"
	OpRemoveParent    Op = "remove_parent"
	OpRemoveSpouse    Op = "remove_spouse"
	OpPropagateRename Op = "propagate_rename"
)

type WarningCode string

const (
	// RoleSexMismatch: the parent's recorded sex contradicts the role.
	RoleSexMismatch WarningCode = "role_sex_mismatch"
	// ParentReplaced: the child already had a different parent in the role.
	ParentReplaced WarningCode = "parent_replaced"
	// RenameUnaligned: a display list did not line up with its id list and
	// no entry naming the old name was found, so a link was appended.
	RenameUnaligned WarningCode = "rename_unaligned"
)

type Warning struct {
	Code    WarningCode
	Path    string
	Message string
}

// WriteFailure is a store error on one side of a mutation. The other side
// is not rolled back.
type WriteFailure struct {
	Path string
	Op   Op
	Err  error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("%s: writing %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteFailure) Unwrap() error {
	return e.Err
}

// Step is one single-record write. Failed steps are kept on the Result so a
// caller can retry them.
type Step struct {
	Op   Op
	Path string

	apply func(fields map[string]any) error
}

type Result struct {
	Op       Op
	Written  []string
	Warnings []Warning
	Failed   []Step
}

func (r *Result) OK() bool {
	return len(r.Failed) == 0
}

// Change describes a mutation that reached the store.
type Change struct {
	ID      uuid.UUID
	Op      Op
	Subject string
	Target  string
	Paths   []string
	At      time.Time
}

type Notifier interface {
	Notify(ctx context.Context, change Change)
}

type NotifierFunc func(ctx context.Context, change Change)

func (f NotifierFunc) Notify(ctx context.Context, change Change) {
	f(ctx, change)
}
