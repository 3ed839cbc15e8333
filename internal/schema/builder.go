package schema

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/graphedge/internal/language"
)

const defaultDeprecationReason = "No longer supported"

// BuildFromAST builds an executable schema from a validated gqlparser schema.
// Builtin prelude types (scalars and the __ introspection types) are included.
// Fields on the operation root types are routed as async; all others are sync.
func BuildFromAST(src *ast.Schema) (*Schema, error) {
	if src == nil {
		return nil, errors.New("schema: nil AST")
	}
	if src.Query == nil {
		return nil, errors.New("schema: query root type is required")
	}
	s := NewSchema(src.Description)
	s.AST = src
	s.SetQueryType(src.Query.Name)
	if src.Mutation != nil {
		s.SetMutationType(src.Mutation.Name)
	}
	if src.Subscription != nil {
		s.SetSubscriptionType(src.Subscription.Name)
	}

	names := make([]string, 0, len(src.Types))
	for name := range src.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		def := src.Types[name]
		t, err := buildType(src, def, s.IsRootType(def.Name))
		if err != nil {
			return nil, errors.Wrapf(err, "schema: type %s", def.Name)
		}
		s.AddType(t)
	}
	for _, dir := range src.Directives {
		s.AddDirective(buildDirective(dir))
	}
	return s, nil
}

// BuildFromSDL parses and validates SDL sources and builds the executable schema.
func BuildFromSDL(sources ...*language.Source) (*Schema, error) {
	doc, err := language.LoadSchema(sources...)
	if err != nil {
		return nil, errors.Wrap(err, "load schema")
	}
	return BuildFromAST(doc)
}

func buildType(src *ast.Schema, def *ast.Definition, root bool) (*Type, error) {
	t := &Type{Name: def.Name, Description: def.Description, BuiltIn: def.BuiltIn}
	switch def.Kind {
	case ast.Object, ast.Interface:
		t.Kind = TypeKindObject
		if def.Kind == ast.Interface {
			t.Kind = TypeKindInterface
		}
		t.Interfaces = append(t.Interfaces, def.Interfaces...)
		for _, fd := range def.Fields {
			if strings.HasPrefix(fd.Name, "__") {
				// meta fields added by the loader belong to introspection
				continue
			}
			f, err := buildField(fd, root)
			if err != nil {
				return nil, err
			}
			t.AddField(f)
		}
		if def.Kind == ast.Interface {
			for _, pt := range src.GetPossibleTypes(def) {
				t.AddPossibleType(pt.Name)
			}
		}
	case ast.Union:
		t.Kind = TypeKindUnion
		t.PossibleTypes = append(t.PossibleTypes, def.Types...)
	case ast.Enum:
		t.Kind = TypeKindEnum
		for _, ev := range def.EnumValues {
			reason, deprecated := deprecation(ev.Directives)
			t.AddEnumValue(&EnumValue{
				Name:              ev.Name,
				Description:       ev.Description,
				IsDeprecated:      deprecated,
				DeprecationReason: reason,
			})
		}
	case ast.InputObject:
		t.Kind = TypeKindInputObject
		t.OneOf = def.Directives.ForName("oneOf") != nil
		for _, fd := range def.Fields {
			iv, err := buildInputValue(fd.Name, fd.Description, fd.Type, fd.DefaultValue, fd.Directives)
			if err != nil {
				return nil, err
			}
			t.AddInputField(iv)
		}
	case ast.Scalar:
		t.Kind = TypeKindScalar
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
				url := arg.Value.Raw
				t.SpecifiedByURL = &url
			}
		}
	default:
		return nil, errors.Errorf("unsupported definition kind %s", def.Kind)
	}
	return t, nil
}

func buildField(fd *ast.FieldDefinition, root bool) (*Field, error) {
	reason, deprecated := deprecation(fd.Directives)
	f := &Field{
		Name:              fd.Name,
		Description:       fd.Description,
		Type:              buildTypeRef(fd.Type),
		Async:             root,
		IsDeprecated:      deprecated,
		DeprecationReason: reason,
	}
	for _, arg := range fd.Arguments {
		iv, err := buildInputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", fd.Name)
		}
		f.Arguments = append(f.Arguments, iv)
	}
	return f, nil
}

func buildInputValue(name, description string, typ *ast.Type, def *ast.Value, dirs ast.DirectiveList) (*InputValue, error) {
	reason, deprecated := deprecation(dirs)
	iv := &InputValue{
		Name:              name,
		Description:       description,
		Type:              buildTypeRef(typ),
		IsDeprecated:      deprecated,
		DeprecationReason: reason,
	}
	if def != nil {
		v, err := def.Value(nil)
		if err != nil {
			return nil, errors.Wrapf(err, "default value of %s", name)
		}
		iv.DefaultValue = v
		iv.DefaultLiteral = def.String()
	}
	return iv, nil
}

func buildTypeRef(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		return NonNullType(ref)
	}
	return ref
}

func buildDirective(dir *ast.DirectiveDefinition) *Directive {
	d := NewDirective(dir.Name, dir.Description).SetRepeatable(dir.IsRepeatable)
	for _, loc := range dir.Locations {
		d.Locations = append(d.Locations, string(loc))
	}
	for _, arg := range dir.Arguments {
		iv, err := buildInputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives)
		if err != nil {
			// prelude and validated SDL defaults always convert; keep the argument without one
			iv = &InputValue{Name: arg.Name, Description: arg.Description, Type: buildTypeRef(arg.Type)}
		}
		d.AddArgument(iv)
	}
	return d
}

func deprecation(dirs ast.DirectiveList) (string, bool) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return "", false
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw, true
	}
	return defaultDeprecationReason, true
}
