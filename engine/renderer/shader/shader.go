// Package shader reflects WGSL programs: their entry points, the bind group layouts they declare and the
// byte layout of their structs. The pipeline cache uses it to check that the layouts a pipeline declares
// match the program it carries.
package shader

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
)

// ErrLayoutMismatch is returned when a pipeline description disagrees with its WGSL program.
var ErrLayoutMismatch = errors.New("shader: layout mismatch")

// Stage identifies the pipeline stage of an entry point.
type Stage int

const (
	// StageVertex marks @vertex entry points.
	StageVertex Stage = iota

	// StageFragment marks @fragment entry points.
	StageFragment

	// StageCompute marks @compute entry points.
	StageCompute
)

// Reflection is what a WGSL program declares.
type Reflection struct {
	// Entries maps each stage to its entry point names in source order.
	Entries map[Stage][]string

	// Groups maps each bind group index to its entries, sorted by binding.
	Groups map[int]renderer.BindGroupLayoutDescriptor

	// Names maps group and binding indices to the declared variable names.
	Names map[int]map[int]string

	// VertexBuffers are the layouts of the struct parameters of the first vertex entry point.
	VertexBuffers []renderer.VertexBufferLayout

	// WorkgroupSize is the @workgroup_size of the first compute entry point, [1, 1, 1] without one.
	WorkgroupSize [3]uint32

	structs map[string]wgslTypeLayout
}

// Reflect parses a WGSL program. Declarations it does not understand are skipped, so the result is only as
// complete as the program is regular; the naga front end remains the authority on validity.
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - Reflection: what the source declares
func Reflect(source string) Reflection {
	cleaned := stripComments(source)
	structs := parseStructBlocks(cleaned)
	sizes := computeStructSizes(structs)
	groups, names := parseBindGroupLayouts(cleaned, sizes)

	r := Reflection{
		Entries:       make(map[Stage][]string),
		Groups:        groups,
		Names:         names,
		WorkgroupSize: parseWorkgroupSize(cleaned),
		structs:       sizes,
	}
	for _, stage := range []Stage{StageVertex, StageFragment, StageCompute} {
		r.Entries[stage] = parseEntryPoints(cleaned, stage)
	}
	if vs := r.Entries[StageVertex]; len(vs) > 0 {
		r.VertexBuffers = parseVertexLayouts(cleaned, vs[0], structs)
	}
	return r
}

// HasEntry reports whether the program declares an entry point for a stage.
func (r Reflection) HasEntry(stage Stage, name string) bool {
	return slices.Contains(r.Entries[stage], name)
}

// StructSize returns the host-shareable size of a struct declared by the program.
//
// Parameters:
//   - name: the struct name
//
// Returns:
//   - uint64: the size in bytes, rounded up to the struct alignment
//   - bool: false if the struct is unknown or holds types that cannot be laid out
func (r Reflection) StructSize(name string) (uint64, bool) {
	l, ok := r.structs[name]
	return l.size, ok
}

// Check verifies a pipeline description against the program: both entry points exist, every binding the
// layouts declare is declared by the program with the same resource type, buffer sizes agree where the
// program fixes one, no program binding is left out, and the vertex buffers match the vertex input structs.
//
// Parameters:
//   - desc: the pipeline description, whose group indices are the positions in BindGroupLayouts
//
// Returns:
//   - error: an ErrLayoutMismatch wrapping the first disagreement, or nil
func (r Reflection) Check(desc renderer.RenderPipelineDescriptor) error {
	if !r.HasEntry(StageVertex, desc.VertexEntry) {
		return fmt.Errorf("%w: no @vertex entry point %q", ErrLayoutMismatch, desc.VertexEntry)
	}
	if !r.HasEntry(StageFragment, desc.FragmentEntry) {
		return fmt.Errorf("%w: no @fragment entry point %q", ErrLayoutMismatch, desc.FragmentEntry)
	}

	for g, declared := range desc.BindGroupLayouts {
		reflected := r.Groups[g]
		for _, want := range declared.Entries {
			got, ok := findEntry(reflected.Entries, want.Binding)
			if !ok {
				return fmt.Errorf("%w: @group(%d) @binding(%d) is not declared by the program", ErrLayoutMismatch, g, want.Binding)
			}
			if got.Type != want.Type {
				return fmt.Errorf("%w: @group(%d) @binding(%d) is %s in the program, %s in the layout",
					ErrLayoutMismatch, g, want.Binding, got.Type, want.Type)
			}
			if got.Type.IsBuffer() && got.MinBindingSize > 0 && want.MinBindingSize != got.MinBindingSize {
				return fmt.Errorf("%w: @group(%d) @binding(%d) binds %d bytes in the program, %d in the layout",
					ErrLayoutMismatch, g, want.Binding, got.MinBindingSize, want.MinBindingSize)
			}
		}
	}
	for g, reflected := range r.Groups {
		for _, e := range reflected.Entries {
			if g >= len(desc.BindGroupLayouts) {
				return fmt.Errorf("%w: @group(%d) has no layout", ErrLayoutMismatch, g)
			}
			if _, ok := findEntry(desc.BindGroupLayouts[g].Entries, e.Binding); !ok {
				return fmt.Errorf("%w: @group(%d) @binding(%d) (%s) has no layout entry", ErrLayoutMismatch, g, e.Binding, r.Names[g][int(e.Binding)])
			}
		}
	}

	if len(desc.VertexBuffers) != len(r.VertexBuffers) {
		return fmt.Errorf("%w: %d vertex buffers in the program, %d in the layout", ErrLayoutMismatch, len(r.VertexBuffers), len(desc.VertexBuffers))
	}
	for i, want := range desc.VertexBuffers {
		got := r.VertexBuffers[i]
		if got.ArrayStride != want.ArrayStride || !slices.Equal(got.Attributes, want.Attributes) {
			return fmt.Errorf("%w: vertex buffer %d differs from the program's input struct", ErrLayoutMismatch, i)
		}
	}
	return nil
}

func findEntry(entries []renderer.BindGroupLayoutEntry, binding uint32) (renderer.BindGroupLayoutEntry, bool) {
	for _, e := range entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return renderer.BindGroupLayoutEntry{}, false
}
