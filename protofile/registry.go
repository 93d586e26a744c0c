// Package protofile loads .proto files and builds codecs for their messages
// at runtime, without generated code.
package protofile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	protoparser "github.com/yoheimuta/go-protoparser/v4"

	"github.com/anirudhraja/protocodec/schema"
)

// Registry stores the schema of loaded .proto files. We look it up when we
// need to decode or encode a message. All methods are safe for concurrent
// use; loads are serialized and lookups wait for a running load to finish.
type Registry struct {
	importPaths    []string
	logger         log.Logger
	maxLen         int
	rejectReserved bool

	// schemaMu guards repo and the symbol tables. Loads hold it for writing.
	schemaMu sync.RWMutex
	repo     *schema.Repo
	messages map[string]*schema.Message // fully qualified name -> message
	enums    map[string]*schema.Enum    // fully qualified name -> enum
	services map[string]*schema.Service // fully qualified name -> service

	// mu guards codecs. It is taken before schemaMu, never after.
	mu     sync.Mutex
	codecs map[string]*Codec
}

// Option configures a Registry.
type Option func(*Registry)

// WithImportPaths sets the directories searched for files and their imports,
// in order. The default is the working directory.
func WithImportPaths(paths ...string) Option {
	return func(r *Registry) { r.importPaths = paths }
}

// WithLogger sets the logger for load progress. The default discards.
func WithLogger(l log.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMaxLength caps every length prefix read by the codecs the registry
// builds: string and bytes values, embedded messages, packed and map
// payloads and skipped unknown fields. Zero means unlimited.
func WithMaxLength(n int) Option {
	return func(r *Registry) { r.maxLen = n }
}

// WithRejectReserved makes the registry's codecs fail on field numbers in
// the reserved range 19000..19999.
func WithRejectReserved() Option {
	return func(r *Registry) { r.rejectReserved = true }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		importPaths: []string{"."},
		logger:      log.NewNopLogger(),
		repo:        &schema.Repo{Files: make(map[string]*schema.File)},
		messages:    make(map[string]*schema.Message),
		enums:       make(map[string]*schema.Enum),
		services:    make(map[string]*schema.Service),
		codecs:      make(map[string]*Codec),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadFile loads name, found under one of the import paths, together with
// everything it imports.
func (r *Registry) LoadFile(name string) error {
	return r.load(func(b *batch) error {
		return r.loadDFS(name, nil, b)
	})
}

// LoadSource loads a file from src under the given name. Its imports are
// looked up in the import paths.
func (r *Registry) LoadSource(name string, src io.Reader) error {
	return r.load(func(b *batch) error {
		return r.loadDFS(name, src, b)
	})
}

// LoadDir loads every .proto file below dir. Imports are resolved against
// the import paths.
func (r *Registry) LoadDir(dir string) error {
	return r.load(func(b *batch) error {
		return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".proto") {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrap(err, "open proto file")
			}
			defer f.Close()
			return r.loadDFS(filepath.ToSlash(rel), f, b)
		})
	})
}

// batch collects what one load call parsed.
type batch struct {
	files []*schema.File
	refs  []typeRef
}

// load runs fill and then registers and resolves what it parsed. Nothing is
// registered when parsing or resolution fails.
func (r *Registry) load(fill func(b *batch) error) error {
	r.schemaMu.Lock()
	defer r.schemaMu.Unlock()

	var b batch
	if err := fill(&b); err != nil {
		r.rollback(b.files)
		return err
	}
	for _, f := range b.files {
		r.register(f)
	}
	if err := r.resolve(b.refs); err != nil {
		for _, f := range b.files {
			r.unregister(f)
		}
		r.rollback(b.files)
		return err
	}
	for _, f := range b.files {
		level.Debug(r.logger).Log("msg", "loaded proto file", "file", f.Name)
	}
	return nil
}

func (r *Registry) rollback(files []*schema.File) {
	for _, f := range files {
		delete(r.repo.Files, f.Name)
	}
}

// loadDFS parses name and, depth first, every file it imports. src may
// supply the content of name; otherwise it is read from the import paths.
func (r *Registry) loadDFS(name string, src io.Reader, b *batch) error {
	if _, ok := r.repo.Files[name]; ok {
		return nil
	}

	if src == nil {
		path, err := r.findProto(name)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "failed to read file")
		}
		src = bytes.NewReader(content)
	}

	parsed, err := protoparser.Parse(src, protoparser.WithFilename(name))
	if err != nil {
		return errors.Wrapf(err, "parse %s", name)
	}
	file, refs, err := convertFile(name, parsed)
	if err != nil {
		return errors.Wrapf(err, "convert %s", name)
	}
	// Mark visited before descending so import cycles terminate.
	r.repo.Files[name] = file
	b.files = append(b.files, file)
	b.refs = append(b.refs, refs...)
	level.Debug(r.logger).Log("msg", "parsed proto file", "file", name, "package", file.Package, "messages", len(file.Messages))

	for _, imp := range file.Imports {
		if strings.HasPrefix(imp, "google/protobuf/") {
			level.Debug(r.logger).Log("msg", "skipping well-known import", "file", name, "import", imp)
			continue
		}
		if err := r.loadDFS(imp, nil, b); err != nil {
			return errors.Wrapf(err, "import %s from %s", imp, name)
		}
	}
	return nil
}

func (r *Registry) findProto(name string) (string, error) {
	if !strings.HasSuffix(name, ".proto") {
		return "", errors.Errorf("%s is not a .proto file", name)
	}
	for _, dir := range r.importPaths {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if _, err := os.Stat(full); err == nil {
			return full, nil
		}
	}
	return "", errors.Errorf("%s not found in import paths %v", name, r.importPaths)
}

// register adds every message, enum and service in f to the symbol tables.
func (r *Registry) register(f *schema.File) {
	var walk func(msgs []*schema.Message)
	walk = func(msgs []*schema.Message) {
		for _, m := range msgs {
			r.messages[m.FullName] = m
			for _, e := range m.NestedEnums {
				r.enums[e.FullName] = e
			}
			walk(m.NestedTypes)
		}
	}
	walk(f.Messages)
	for _, e := range f.Enums {
		r.enums[e.FullName] = e
	}
	for _, s := range f.Services {
		r.services[joinName(f.Package, s.Name)] = s
	}
}

func (r *Registry) unregister(f *schema.File) {
	var walk func(msgs []*schema.Message)
	walk = func(msgs []*schema.Message) {
		for _, m := range msgs {
			delete(r.messages, m.FullName)
			for _, e := range m.NestedEnums {
				delete(r.enums, e.FullName)
			}
			walk(m.NestedTypes)
		}
	}
	walk(f.Messages)
	for _, e := range f.Enums {
		delete(r.enums, e.FullName)
	}
	for _, s := range f.Services {
		delete(r.services, joinName(f.Package, s.Name))
	}
}

// GetMessage retrieves a message definition by fully qualified name, or by
// a unique suffix of it.
func (r *Registry) GetMessage(name string) (*schema.Message, error) {
	r.schemaMu.RLock()
	defer r.schemaMu.RUnlock()
	if m, ok := r.messages[name]; ok {
		return m, nil
	}
	var found *schema.Message
	for full, m := range r.messages {
		if strings.HasSuffix(full, "."+name) {
			if found != nil {
				return nil, errors.Errorf("message name %s is ambiguous", name)
			}
			found = m
		}
	}
	if found == nil {
		return nil, errors.Errorf("message not found: %s", name)
	}
	return found, nil
}

// GetEnum retrieves an enum definition by fully qualified name.
func (r *Registry) GetEnum(name string) (*schema.Enum, error) {
	r.schemaMu.RLock()
	defer r.schemaMu.RUnlock()
	if e, ok := r.enums[name]; ok {
		return e, nil
	}
	return nil, errors.Errorf("enum not found: %s", name)
}

// GetService retrieves a service definition by fully qualified name.
func (r *Registry) GetService(name string) (*schema.Service, error) {
	r.schemaMu.RLock()
	defer r.schemaMu.RUnlock()
	if s, ok := r.services[name]; ok {
		return s, nil
	}
	return nil, errors.Errorf("service not found: %s", name)
}

// Files returns a snapshot of the loaded files keyed by import name.
func (r *Registry) Files() map[string]*schema.File {
	r.schemaMu.RLock()
	defer r.schemaMu.RUnlock()
	files := make(map[string]*schema.File, len(r.repo.Files))
	for name, f := range r.repo.Files {
		files[name] = f
	}
	return files
}

// ListMessages returns all registered message names, sorted.
func (r *Registry) ListMessages() []string {
	r.schemaMu.RLock()
	defer r.schemaMu.RUnlock()
	return sortedKeys(r.messages)
}

// ListEnums returns all registered enum names, sorted.
func (r *Registry) ListEnums() []string {
	r.schemaMu.RLock()
	defer r.schemaMu.RUnlock()
	return sortedKeys(r.enums)
}

// ListServices returns all registered service names, sorted.
func (r *Registry) ListServices() []string {
	r.schemaMu.RLock()
	defer r.schemaMu.RUnlock()
	return sortedKeys(r.services)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
