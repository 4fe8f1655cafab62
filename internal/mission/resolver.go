package mission

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Document tags recognized during resolution.
const (
	tagInclude      = "!include"
	tagRelativePath = "!relative_path"
)

// requiredSections must be present at the top level after all variant
// overlays are applied.
var requiredSections = []string{"mode", "vehicle_interface", "drive"}

// Resolver turns a base mission document plus named variant overlays into a
// resolved Spec. Resolution is a pure transform: identical inputs always
// produce an identical Spec.
type Resolver struct {
	validate *validator.Validate
}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Resolve loads the base document at path, applies each named variant's
// overlay in the order given, and decodes the merged tree into a Spec.
//
// Variant overlays live under the document's top-level variants mapping.
// When an overlay carries a run key, that subtree is the overlay; otherwise
// the variant body itself is merged onto the document root.
func (r *Resolver) Resolve(path string, variants ...string) (*Spec, error) {
	merged, err := r.loadDocument(path, nil)
	if err != nil {
		return nil, err
	}

	declared, _ := merged["variants"].(map[string]any)
	for _, name := range variants {
		raw, ok := declared[name]
		if !ok {
			return nil, NewUnknownVariantError(name)
		}
		body, ok := raw.(map[string]any)
		if !ok {
			return nil, &ConfigError{
				Code:    ErrConfigInvalid,
				Message: fmt.Sprintf("variant %q is not a mapping", name),
				Field:   "variants." + name,
			}
		}
		overlay := body
		if run, ok := body["run"].(map[string]any); ok {
			overlay = run
		}
		merged = DeepMerge(merged, overlay)
	}

	for _, section := range requiredSections {
		if _, ok := merged[section]; !ok {
			return nil, NewMissingFieldError(section)
		}
	}

	spec, err := r.decode(merged)
	if err != nil {
		return nil, err
	}
	if err := r.validateSpec(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// loadDocument reads a YAML document, expands !include and !relative_path
// nodes, and decodes the result into a generic tree. stack carries the
// chain of absolute paths currently being included, for cycle detection.
func (r *Resolver) loadDocument(path string, stack []string) (map[string]any, error) {
	node, err := r.loadNode(path, stack)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := node.Decode(&out); err != nil {
		return nil, WrapConfigError(ErrConfigParse, fmt.Sprintf("failed to decode %s", path), err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// loadNode parses the document at path and expands reference tags in place.
func (r *Resolver) loadNode(path string, stack []string) (*yaml.Node, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, WrapConfigError(ErrConfigParse, fmt.Sprintf("failed to resolve path %s", path), err)
	}
	for _, seen := range stack {
		if seen == abs {
			return nil, NewCyclicIncludeError(append(append([]string{}, stack...), abs))
		}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, WrapConfigError(ErrConfigParse, fmt.Sprintf("failed to read %s", path), err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, WrapConfigError(ErrConfigParse, fmt.Sprintf("failed to parse %s", path), err)
	}
	if len(root.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}

	doc := root.Content[0]
	if err := r.expand(doc, filepath.Dir(abs), append(stack, abs)); err != nil {
		return nil, err
	}
	return doc, nil
}

// expand rewrites reference tags in the node tree. !include nodes are
// replaced by the referenced document's root; !relative_path scalars are
// rewritten to be anchored at dir, the including document's directory.
func (r *Resolver) expand(n *yaml.Node, dir string, stack []string) error {
	switch n.Tag {
	case tagInclude:
		included, err := r.loadNode(anchorPath(dir, n.Value), stack)
		if err != nil {
			return err
		}
		*n = *included
		return nil
	case tagRelativePath:
		n.Tag = "!!str"
		n.Value = anchorPath(dir, n.Value)
		return nil
	}
	for _, child := range n.Content {
		if err := r.expand(child, dir, stack); err != nil {
			return err
		}
	}
	return nil
}

// anchorPath joins a relative path to the including document's directory.
// Absolute paths pass through unchanged.
func anchorPath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// decode converts the merged generic tree into a typed Spec.
func (r *Resolver) decode(merged map[string]any) (*Spec, error) {
	var spec Spec
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       componentRefHook(),
		Result:           &spec,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, WrapConfigError(ErrConfigParse, "failed to build spec decoder", err)
	}
	if err := decoder.Decode(merged); err != nil {
		return nil, WrapConfigError(ErrConfigInvalid, "merged document does not match the mission schema", err)
	}
	return &spec, nil
}

// validateSpec applies field-level constraints plus cross-field checks the
// struct tags cannot express.
func (r *Resolver) validateSpec(spec *Spec) error {
	if err := r.validate.Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ConfigError{
				Code:    ErrConfigInvalid,
				Message: fmt.Sprintf("constraint %q violated", verrs[0].Tag()),
				Field:   verrs[0].Namespace(),
				Cause:   err,
			}
		}
		return WrapConfigError(ErrConfigInvalid, "specification failed validation", err)
	}

	if spec.VehicleInterface == nil || spec.VehicleInterface.Type == "" {
		return NewMissingFieldError("vehicle_interface.type")
	}

	seen := make(map[string]bool, len(spec.ComputationGraph.Stages))
	for _, decl := range spec.ComputationGraph.Stages {
		if seen[decl.Name] {
			return &ConfigError{
				Code:    ErrConfigInvalid,
				Message: fmt.Sprintf("stage %q declared twice", decl.Name),
				Field:   "computation_graph.stages",
			}
		}
		seen[decl.Name] = true
	}
	return nil
}
