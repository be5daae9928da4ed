package shadow

import "strings"

// Options control naming of the generated shadow graph.
type Options struct {
	// Namespace is the prefix every shadow namespace starts with.
	Namespace string
	// FakeImplPrefix names the concrete implementation generated for
	// interface and abstract shadows.
	FakeImplPrefix string
	// ForwardField names the private field holding the wrapped instance.
	ForwardField string
	// HolderPrefix names the accessor property exposing the held instance.
	HolderPrefix string
	// WitnessSuffix is appended to the names of witness generic parameters.
	WitnessSuffix string
	// TargetName names the produced module; defaults to "<source>.<Namespace>".
	TargetName string
	// SourceScope is the import scope target references use for source
	// definitions; defaults to the source module name.
	SourceScope string
}

// Default naming.
const (
	DefaultNamespace      = "Fake"
	DefaultFakeImplPrefix = "_FakeImpl_"
	DefaultForwardField   = "__forward"
	DefaultHolderPrefix   = "__Forward_"
	DefaultWitnessSuffix  = "Shadow"
)

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if o.FakeImplPrefix == "" {
		o.FakeImplPrefix = DefaultFakeImplPrefix
	}
	if o.ForwardField == "" {
		o.ForwardField = DefaultForwardField
	}
	if o.HolderPrefix == "" {
		o.HolderPrefix = DefaultHolderPrefix
	}
	if o.WitnessSuffix == "" {
		o.WitnessSuffix = DefaultWitnessSuffix
	}
	return o
}

// ShadowNamespace maps an original namespace into the shadow namespace.
func (o Options) ShadowNamespace(ns string) string {
	if ns == "" {
		return o.Namespace
	}
	return o.Namespace + "." + ns
}

// HolderName is the accessor property name for the original full name.
func (o Options) HolderName(fullName string) string {
	return o.HolderPrefix + mangle(fullName)
}

func mangle(name string) string {
	return strings.NewReplacer(".", "_", "`", "_").Replace(name)
}

func getterName(property string) string { return "get_" + property }
