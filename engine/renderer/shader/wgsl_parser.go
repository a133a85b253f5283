package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
)

// wgslVertexFormatMap holds the WGSL types a vertex input member may have.
var wgslVertexFormatMap = map[string]vertexFormatInfo{
	"vec2f":     {renderer.VertexFormatFloat32x2, 8},
	"vec2<f32>": {renderer.VertexFormatFloat32x2, 8},
	"vec3f":     {renderer.VertexFormatFloat32x3, 12},
	"vec3<f32>": {renderer.VertexFormatFloat32x3, 12},
	"vec4f":     {renderer.VertexFormatFloat32x4, 16},
	"vec4<f32>": {renderer.VertexFormatFloat32x4, 16},
	"u32":       {renderer.VertexFormatUint32, 4},
}

var (
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex skips leading attributes and captures the name and the rest of the line as the type, so
	// parameterised types such as array<T, N> survive.
	fieldRegex = regexp.MustCompile(`(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)`)

	entryRegexes = map[Stage]*regexp.Regexp{
		StageVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		StageFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		StageCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}

	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindGroupDeclRegex captures group, binding, address space, name and type of declarations such as
	// @group(0) @binding(0) var<uniform> camera: Camera; and @group(1) @binding(2) var colormap: texture_2d<f32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// parseBindGroupLayouts collects the resource declarations of a comment-free source by group, with buffer
// entries sized from the struct layouts. Resources the renderer cannot bind are skipped.
func parseBindGroupLayouts(source string, sizes map[string]wgslTypeLayout) (map[int]renderer.BindGroupLayoutDescriptor, map[int]map[int]string) {
	entries := make(map[int][]renderer.BindGroupLayoutEntry)
	names := make(map[int]map[int]string)

	for _, m := range bindGroupDeclRegex.FindAllStringSubmatch(source, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		addressSpace := strings.TrimSpace(m[3])
		typeName := strings.TrimSpace(m[5])

		typ, ok := classifyResource(addressSpace, typeName)
		if !ok {
			continue
		}
		entry := renderer.BindGroupLayoutEntry{Binding: uint32(binding), Type: typ}
		if typ.IsBuffer() {
			if l, ok := resolveTypeLayout(typeName, sizes); ok {
				entry.MinBindingSize = l.size
			}
		}
		entries[group] = append(entries[group], entry)
		if names[group] == nil {
			names[group] = make(map[int]string)
		}
		names[group][binding] = strings.TrimSpace(m[4])
	}

	out := make(map[int]renderer.BindGroupLayoutDescriptor, len(entries))
	for g, es := range entries {
		sort.Slice(es, func(i, j int) bool { return es[i].Binding < es[j].Binding })
		out[g] = renderer.BindGroupLayoutDescriptor{Entries: es}
	}
	return out, names
}

// classifyResource maps an address space and type to a binding type.
func classifyResource(addressSpace, typeName string) (renderer.BindingType, bool) {
	switch {
	case addressSpace == "uniform":
		return renderer.BindingTypeUniform, true
	case strings.HasPrefix(addressSpace, "storage"):
		if strings.Contains(addressSpace, "read_write") {
			return renderer.BindingTypeStorage, true
		}
		return renderer.BindingTypeReadOnlyStorage, true
	case addressSpace != "":
		return 0, false
	}

	base, _ := splitTypeParams(typeName)
	switch base {
	case "sampler":
		return renderer.BindingTypeSampler, true
	case "texture_2d":
		return renderer.BindingTypeTexture2D, true
	case "texture_3d":
		return renderer.BindingTypeTexture3D, true
	}
	return 0, false
}

// parseEntryPoints returns the names of every entry point of a stage.
func parseEntryPoints(source string, stage Stage) []string {
	re, ok := entryRegexes[stage]
	if !ok {
		return nil
	}
	var names []string
	for _, m := range re.FindAllStringSubmatch(source, -1) {
		names = append(names, m[1])
	}
	return names
}

// parseWorkgroupSize returns the first @workgroup_size, with omitted dimensions as 1.
func parseWorkgroupSize(source string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	m := workgroupSizeRegex.FindStringSubmatch(source)
	if m == nil {
		return size
	}
	for i := range size {
		if m[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(m[i+1], 10, 32); err == nil {
			size[i] = uint32(v)
		}
	}
	return size
}

// parseVertexLayouts lays out the struct parameters of a vertex entry point that are pure vertex inputs,
// one buffer per parameter in declaration order. Builtin parameters take no buffer.
func parseVertexLayouts(source, entry string, structs []parsedStruct) []renderer.VertexBufferLayout {
	params, ok := entryParams(source, entry)
	if !ok {
		return nil
	}
	byName := make(map[string]parsedStruct, len(structs))
	for _, ps := range structs {
		byName[ps.name] = ps
	}

	var layouts []renderer.VertexBufferLayout
	for _, p := range parseFields(params) {
		ps, ok := byName[p.typeName]
		if !ok || !isVertexInputStruct(ps) {
			continue
		}
		if layout, ok := buildVertexBufferLayout(ps); ok {
			layouts = append(layouts, layout)
		}
	}
	return layouts
}

// entryParams returns the text between the parentheses of a function's parameter list.
func entryParams(source, name string) (string, bool) {
	loc := regexp.MustCompile(`\bfn\s+` + regexp.QuoteMeta(name) + `\s*\(`).FindStringIndex(source)
	if loc == nil {
		return "", false
	}
	depth := 1
	for i := loc[1]; i < len(source); i++ {
		switch source[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return source[loc[1]:i], true
			}
		}
	}
	return "", false
}

func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, m := range matches {
		structs = append(structs, parsedStruct{name: m[1], fields: parseFields(m[2])})
	}
	return structs
}

// parseFields splits a struct body or a parameter list into its members.
func parseFields(body string) []parsedField {
	var fields []parsedField
	for _, part := range splitAtTopLevelCommas(body) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fm := fieldRegex.FindStringSubmatch(part)
		if fm == nil {
			continue
		}
		f := parsedField{
			name:      fm[1],
			typeName:  strings.TrimSpace(fm[2]),
			location:  -1,
			isBuiltin: builtinRegex.MatchString(part),
		}
		if lm := locationRegex.FindStringSubmatch(part); lm != nil {
			f.location, _ = strconv.Atoi(lm[1])
		}
		fields = append(fields, f)
	}
	return fields
}
