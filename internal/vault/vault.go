// Package vault adapts a directory of markdown notes with YAML frontmatter to
// the record store the graph and relationship mutator consume. Handles are
// slash separated paths relative to the vault root.
package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/facette/natsort"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"chartedroots/internal/parser"
	"chartedroots/internal/person"
)

var (
	ErrNotFound      = errors.New("note not found")
	ErrExists        = errors.New("note already exists")
	ErrInvalidHandle = errors.New("invalid note handle")
)

type Options struct {
	// Folders limits scanning to these vault-relative folders. Empty scans
	// the whole vault.
	Folders []string
	Exclude []string

	PersonType string
	Aliases    map[string]string
	Workers    int
	Logger     *logrus.Logger
}

type Vault struct {
	fs         afero.Fs
	root       string
	folders    []string
	excludes   []string
	personType string
	fields     person.FieldMap
	workers    int
	log        *logrus.Logger

	locks sync.Map
}

func New(fsys afero.Fs, root string, opts Options) *Vault {
	workers := opts.Workers
	if workers < 1 {
		workers = 8
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	personType := opts.PersonType
	if personType == "" {
		personType = person.DefaultType
	}

	excludes := make([]string, 0, len(opts.Exclude))
	for _, ex := range opts.Exclude {
		ex = strings.Trim(path.Clean(filepath.ToSlash(ex)), "/")
		if ex == "" || ex == "." {
			continue
		}
		excludes = append(excludes, ex)
	}

	return &Vault{
		fs:         fsys,
		root:       filepath.Clean(root),
		folders:    opts.Folders,
		excludes:   excludes,
		personType: personType,
		fields:     person.NewFieldMap(opts.Aliases),
		workers:    workers,
		log:        log,
	}
}

// NewOS opens a vault on the local filesystem.
func NewOS(root string, opts Options) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving vault root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening vault: %s is not a directory", abs)
	}
	return New(afero.NewOsFs(), abs, opts), nil
}

func (v *Vault) Root() string {
	return v.root
}

func (v *Vault) FieldMap() person.FieldMap {
	return v.fields
}

// Clean normalises a handle: slash separated, relative, with a .md suffix.
func Clean(h string) (string, error) {
	h = strings.TrimSpace(filepath.ToSlash(h))
	if h == "" {
		return "", ErrInvalidHandle
	}
	if strings.HasPrefix(h, "/") {
		return "", fmt.Errorf("%w: %s is absolute", ErrInvalidHandle, h)
	}
	h = path.Clean(h)
	if h == "." || h == ".." || strings.HasPrefix(h, "../") {
		return "", fmt.Errorf("%w: %s escapes the vault", ErrInvalidHandle, h)
	}
	if !strings.HasSuffix(strings.ToLower(h), ".md") {
		h += ".md"
	}
	return h, nil
}

func (v *Vault) abs(h string) (string, string, error) {
	clean, err := Clean(h)
	if err != nil {
		return "", "", err
	}
	return clean, filepath.Join(v.root, filepath.FromSlash(clean)), nil
}

// Notes lists every markdown note in scope, in natural order.
func (v *Vault) Notes(ctx context.Context) ([]string, error) {
	roots := []string{v.root}
	if len(v.folders) > 0 {
		roots = roots[:0]
		for _, folder := range v.folders {
			if strings.TrimSpace(folder) == "" {
				continue
			}
			roots = append(roots, filepath.Join(v.root, filepath.FromSlash(folder)))
		}
	}

	seen := make(map[string]struct{})
	var handles []string
	for _, root := range roots {
		exists, err := afero.DirExists(v.fs, root)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", root, err)
		}
		if !exists {
			continue
		}
		err = afero.Walk(v.fs, root, func(p string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(v.root, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if info.IsDir() {
				if rel != "." && (strings.HasPrefix(info.Name(), ".") || v.excluded(rel)) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(strings.ToLower(info.Name()), ".md") || v.excluded(rel) {
				return nil
			}
			if _, ok := seen[rel]; !ok {
				seen[rel] = struct{}{}
				handles = append(handles, rel)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking vault: %w", err)
		}
	}
	natsort.Sort(handles)
	return handles, nil
}

func (v *Vault) excluded(rel string) bool {
	for _, ex := range v.excludes {
		if rel == ex || strings.HasPrefix(rel, ex+"/") {
			return true
		}
	}
	return false
}

// ListRecords returns the notes whose frontmatter declares the given kind.
// Notes without frontmatter are skipped; unreadable notes are logged and
// skipped.
func (v *Vault) ListRecords(ctx context.Context, kind string) ([]string, error) {
	notes, err := v.Notes(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]bool, len(notes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, h := range notes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fields, err := v.ReadFields(gctx, h)
			if err != nil {
				if !errors.Is(err, parser.ErrNoFrontmatter) {
					v.log.WithError(err).WithField("path", h).Warn("skipping unreadable note")
				}
				return nil
			}
			matches[i] = v.isKind(fields, kind)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	var out []string
	for i, h := range notes {
		if matches[i] {
			out = append(out, h)
		}
	}
	return out, nil
}

func (v *Vault) isKind(fields map[string]any, kind string) bool {
	if kind == "" || strings.EqualFold(kind, v.personType) || strings.EqualFold(kind, person.DefaultType) {
		return v.fields.IsPerson(fields, v.personType)
	}
	return strings.EqualFold(v.fields.String(fields, person.KeyType), kind)
}

func (v *Vault) ReadDocument(ctx context.Context, h string) (*parser.Document, error) {
	clean, abs, err := v.abs(h)
	if err != nil {
		return nil, err
	}
	doc, err := parser.ParseFile(v.fs, abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return nil, fmt.Errorf("reading %s: %w", clean, err)
	}
	doc.SourceFile = clean
	return doc, nil
}

func (v *Vault) ReadFields(ctx context.Context, h string) (map[string]any, error) {
	doc, err := v.ReadDocument(ctx, h)
	if err != nil {
		return nil, err
	}
	return doc.Frontmatter, nil
}

// WriteFields applies fn to the note's frontmatter and persists the result.
// Writes to the same note are serialised; the body and the order of
// untouched keys are preserved. A note without frontmatter gains one.
func (v *Vault) WriteFields(ctx context.Context, h string, fn func(map[string]any) error) error {
	clean, abs, err := v.abs(h)
	if err != nil {
		return err
	}
	unlock := v.lock(clean)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := v.fs.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return fmt.Errorf("stat %s: %w", clean, err)
	}
	data, err := afero.ReadFile(v.fs, abs)
	if err != nil {
		return fmt.Errorf("reading %s: %w", clean, err)
	}

	doc, err := parser.Parse(data)
	if errors.Is(err, parser.ErrNoFrontmatter) {
		doc = parser.New(nil, nil, string(data))
	} else if err != nil {
		return fmt.Errorf("parsing %s: %w", clean, err)
	}

	if err := fn(doc.Frontmatter); err != nil {
		return err
	}

	out, err := parser.Render(doc)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", clean, err)
	}
	if err := afero.WriteFile(v.fs, abs, out, info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", clean, err)
	}
	v.log.WithField("path", clean).Debug("wrote frontmatter")
	return nil
}

// CreateRecord writes a new note. Keys are written in the person key order.
func (v *Vault) CreateRecord(ctx context.Context, h string, fields map[string]any, body string) error {
	clean, abs, err := v.abs(h)
	if err != nil {
		return err
	}
	unlock := v.lock(clean)
	defer unlock()

	exists, err := afero.Exists(v.fs, abs)
	if err != nil {
		return fmt.Errorf("checking %s: %w", clean, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrExists, clean)
	}
	if err := v.fs.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("creating folder for %s: %w", clean, err)
	}

	out, err := parser.Render(parser.New(fields, v.fields.Order(), body))
	if err != nil {
		return fmt.Errorf("rendering %s: %w", clean, err)
	}
	if err := afero.WriteFile(v.fs, abs, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", clean, err)
	}
	return nil
}

func (v *Vault) Exists(ctx context.Context, h string) (bool, error) {
	_, abs, err := v.abs(h)
	if err != nil {
		return false, err
	}
	return afero.Exists(v.fs, abs)
}

// Move renames a note and returns its new handle.
func (v *Vault) Move(ctx context.Context, from, to string) (string, error) {
	src, srcAbs, err := v.abs(from)
	if err != nil {
		return "", err
	}
	dst, dstAbs, err := v.abs(to)
	if err != nil {
		return "", err
	}
	if src == dst {
		return dst, nil
	}
	unlock := v.lock(src)
	defer unlock()

	if exists, err := afero.Exists(v.fs, dstAbs); err != nil {
		return "", fmt.Errorf("checking %s: %w", dst, err)
	} else if exists {
		return "", fmt.Errorf("%w: %s", ErrExists, dst)
	}
	if err := v.fs.MkdirAll(filepath.Dir(dstAbs), 0o755); err != nil {
		return "", fmt.Errorf("creating folder for %s: %w", dst, err)
	}
	if err := v.fs.Rename(srcAbs, dstAbs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, src)
		}
		return "", fmt.Errorf("moving %s: %w", src, err)
	}
	return dst, nil
}

// ResolveDisplayName is the name links use for a note: its basename.
func (v *Vault) ResolveDisplayName(ctx context.Context, h string) (string, error) {
	clean, err := Clean(h)
	if err != nil {
		return "", err
	}
	base := path.Base(clean)
	return base[:len(base)-len(path.Ext(base))], nil
}

// ResolvePath returns the note's handle after normalisation. Links are
// written relative to the vault, so this is also the link target.
func (v *Vault) ResolvePath(ctx context.Context, h string) (string, error) {
	return Clean(h)
}

func (v *Vault) Hash(ctx context.Context, h string) (string, error) {
	clean, abs, err := v.abs(h)
	if err != nil {
		return "", err
	}
	data, err := afero.ReadFile(v.fs, abs)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", clean, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (v *Vault) lock(h string) func() {
	value, _ := v.locks.LoadOrStore(h, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
