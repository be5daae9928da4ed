// Package metafile stores meta.Module snapshots on disk.
//
// A snapshot is a msgpack document carrying a magic tag, a schema version
// and the module arenas. Interning tables are rebuilt on decode and the
// decoded module is structurally validated before it is handed out.
package metafile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"shadowgen/internal/meta"
)

// Magic tags every snapshot.
const Magic = "SMOD"

// SchemaVersion is bumped whenever the encoded layout of meta.Module changes.
const SchemaVersion uint16 = 1

// Ext is the conventional snapshot file extension.
const Ext = ".smod"

var (
	// ErrNotSnapshot is returned for documents without the snapshot magic.
	ErrNotSnapshot = errors.New("not a module snapshot")
	// ErrSchemaMismatch is returned for snapshots written by another schema.
	ErrSchemaMismatch = errors.New("snapshot schema mismatch")
)

type envelope struct {
	Magic  string       `msgpack:"magic"`
	Schema uint16       `msgpack:"schema"`
	Module *meta.Module `msgpack:"module"`
}

// Encode writes m to w.
func Encode(w io.Writer, m *meta.Module) error {
	if m == nil {
		return errors.New("metafile: nil module")
	}
	enc := msgpack.NewEncoder(w)
	return enc.Encode(&envelope{Magic: Magic, Schema: SchemaVersion, Module: m})
}

// Decode reads a snapshot from r.
func Decode(r io.Reader) (*meta.Module, error) {
	var env envelope
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("metafile: %w", err)
	}
	if env.Magic != Magic {
		return nil, ErrNotSnapshot
	}
	if env.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: got=%d want=%d", ErrSchemaMismatch, env.Schema, SchemaVersion)
	}
	if env.Module == nil {
		return nil, errors.New("metafile: snapshot without module")
	}
	m := env.Module
	seed(m)
	m.Reindex()
	if err := meta.Validate(m); err != nil {
		return nil, fmt.Errorf("metafile: module %s: %w", m.Name, err)
	}
	return m, nil
}

// seed restores the reserved zero slot of arenas that decoded empty.
func seed(m *meta.Module) {
	if len(m.Defs) == 0 {
		m.Defs = make([]meta.TypeDef, 1)
	}
	if len(m.Methods) == 0 {
		m.Methods = make([]meta.Method, 1)
	}
	if len(m.Fields) == 0 {
		m.Fields = make([]meta.Field, 1)
	}
	if len(m.Properties) == 0 {
		m.Properties = make([]meta.Property, 1)
	}
	if len(m.Params) == 0 {
		m.Params = make([]meta.GenericParam, 1)
	}
	if len(m.Imports) == 0 {
		m.Imports = make([]meta.Import, 1)
	}
	if len(m.MethodRefs) == 0 {
		m.MethodRefs = make([]meta.MethodRef, 1)
	}
	if len(m.FieldRefs) == 0 {
		m.FieldRefs = make([]meta.FieldRef, 1)
	}
	if len(m.Refs) == 0 {
		m.Refs = make([]meta.TypeRef, 1)
	}
}

// ReadFile decodes the snapshot stored at path.
func ReadFile(path string) (*meta.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			panic(closeErr)
		}
	}()
	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WriteFile stores m at path, replacing any previous file atomically.
func WriteFile(path string, m *meta.Module) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-*"+Ext)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()
	if err = Encode(f, m); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
