package project

import (
	"fmt"
	"strings"

	"shadowgen/internal/metafile"
	"shadowgen/internal/shadow"
)

// Template returns a starter manifest with one job weaving the snapshot
// called name. types pre-fills the job's type list.
func Template(name string, types ...string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "library"
	}
	var sb strings.Builder
	sb.WriteString("[weave]\n")
	fmt.Fprintf(&sb, "namespace = %q\n", shadow.DefaultNamespace)
	fmt.Fprintf(&sb, "fake_impl_prefix = %q\n", shadow.DefaultFakeImplPrefix)
	fmt.Fprintf(&sb, "forward_field = %q\n", shadow.DefaultForwardField)
	fmt.Fprintf(&sb, "holder_prefix = %q\n", shadow.DefaultHolderPrefix)
	fmt.Fprintf(&sb, "witness_suffix = %q\n", shadow.DefaultWitnessSuffix)
	sb.WriteString("\n[[job]]\n")
	fmt.Fprintf(&sb, "name = %q\n", name)
	fmt.Fprintf(&sb, "input = %q\n", name+metafile.Ext)
	fmt.Fprintf(&sb, "output = %q\n", "out/"+name+"."+shadow.DefaultNamespace+metafile.Ext)
	sb.WriteString("types = [")
	for i, t := range types {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", t)
	}
	sb.WriteString("]\n")
	return sb.String()
}
