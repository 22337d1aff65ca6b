package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"

	"github.com/mobiletoly/sqlitenow-go/adapter"
	"github.com/mobiletoly/sqlitenow-go/analyze"
	"github.com/mobiletoly/sqlitenow-go/schema"
)

// Generate emits typed data-access code for the analyzed statements into
// <outDir>/queries.go and returns the written filename.
func Generate(models []*analyze.Model, pkg, outDir string) (string, error) {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by sqlitenow. DO NOT EDIT.")

	for _, m := range models {
		if err := emitStatement(f, m); err != nil {
			return "", fmt.Errorf("generate %s: %v", m.Statement.Name, err)
		}
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("creating output dir: %v", err)
	}
	filename := filepath.Join(outDir, "queries.go")
	if err := f.Save(filename); err != nil {
		return "", fmt.Errorf("writing %s: %v", filename, err)
	}
	return filename, nil
}

func emitStatement(f *jen.File, m *analyze.Model) error {
	hasRows := m.Statement.Kind == schema.KindSelect || m.Parsed.Returning != nil
	if hasRows {
		emitResultStruct(f, m)
		return emitQueryFunc(f, m)
	}
	return emitExecFunc(f, m)
}

func pascal(s string) string {
	if strings.ContainsAny(s, "_- ") {
		return inflect.Camelize(strings.ToLower(s))
	}
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func lowerCamel(s string) string {
	if strings.ContainsAny(s, "_- ") {
		return inflect.CamelizeDownFirst(strings.ToLower(s))
	}
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func resultName(m *analyze.Model) string {
	if r := m.Statement.Annotations.Result; r != nil && *r != "" {
		return *r
	}
	return pascal(m.Statement.Name) + "Result"
}

// typeId renders a resolved type, importing the package of qualified names
// like "time.Time".
func typeId(t string) jen.Code {
	if i := strings.LastIndex(t, "."); i > 0 {
		return jen.Qual(t[:i], t[i+1:])
	}
	return jen.Id(t)
}

func typeCode(t string, nullable bool) jen.Code {
	if nullable && !strings.HasPrefix(t, "[]") && !strings.HasPrefix(t, "*") {
		return jen.Op("*").Add(typeId(t))
	}
	return typeId(t)
}

// plainInfos selects the scalar output fields of the plan, in field order.
func plainInfos(m *analyze.Model) []analyze.FieldInfo {
	if m.Plan == nil {
		return m.Fields
	}
	plain := map[string]bool{}
	for _, f := range m.Plan.PlainFields {
		plain[f.Alias] = true
	}
	var infos []analyze.FieldInfo
	for _, info := range m.Fields {
		if plain[info.Field.Alias] {
			infos = append(infos, info)
		}
	}
	return infos
}

func emitResultStruct(f *jen.File, m *analyze.Model) {
	name := resultName(m)
	f.Commentf("%s is one row of the %s query.", name, m.Statement.Name)
	f.Type().Id(name).StructFunc(func(g *jen.Group) {
		for _, info := range plainInfos(m) {
			g.Id(pascal(info.Property)).Add(typeCode(info.GoType, info.Nullable))
		}
	})
}

// signatureParams renders ctx/db, bind parameters in first-occurrence order,
// then one converter parameter per distinct assigned name.
func signatureParams(m *analyze.Model) []jen.Code {
	params := []jen.Code{
		jen.Id("ctx").Qual("context", "Context"),
		jen.Id("db").Op("*").Qual("database/sql", "DB"),
	}
	for _, name := range m.ParamOrder {
		params = append(params, jen.Id(lowerCamel(name)).Add(typeId(m.ParamTypes[name])))
	}
	for _, name := range adapterParamNames(m) {
		cfg := adapterConfigByName(m, name)
		params = append(params, jen.Id(name).Func().Params(typeId(cfg.InputType)).Add(typeId(cfg.OutputType)))
	}
	return params
}

// adapterParamNames returns the distinct final converter names in assignment
// order; configs sharing a final name share one function parameter.
func adapterParamNames(m *analyze.Model) []string {
	var names []string
	seen := map[string]bool{}
	for _, cfg := range m.Adapters.Configs() {
		name, _ := m.Adapters.Name(cfg)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func adapterConfigByName(m *analyze.Model, name string) adapter.ParamConfig {
	for _, cfg := range m.Adapters.Configs() {
		if n, _ := m.Adapters.Name(cfg); n == name {
			return cfg
		}
	}
	return adapter.ParamConfig{InputType: "string", OutputType: "string"}
}

// bindArgs renders the positional argument list: one entry per placeholder
// occurrence, duplicates bound to the same input value, input adapters
// applied where annotated.
func bindArgs(m *analyze.Model) []jen.Code {
	args := []jen.Code{jen.Id("ctx"), jen.Lit(m.Rewrite.SQL)}
	target := m.Parsed.TargetTable()
	for _, name := range m.Rewrite.Parameters {
		v := jen.Id(lowerCamel(name))
		if rec, ok := m.Source.Fields[strings.ToLower(name)]; ok && rec.Adapter {
			raw := adapter.InputRawName(target, name)
			if fn, ok := m.Adapters.ResolveOutputName(raw, target); ok {
				v = jen.Id(fn).Call(jen.Id(lowerCamel(name)))
			}
		}
		args = append(args, v)
	}
	return args
}

func emitQueryFunc(f *jen.File, m *analyze.Model) error {
	name := pascal(m.Statement.Name)
	result := resultName(m)
	infos := m.Fields
	plain := plainInfos(m)
	plainSet := map[string]bool{}
	for _, info := range plain {
		plainSet[info.Field.Alias] = true
	}

	f.Commentf("%s executes the %s statement.", name, m.Statement.Name)
	f.Func().Id(name).Params(signatureParams(m)...).Params(jen.Index().Id(result), jen.Error()).BlockFunc(func(g *jen.Group) {
		g.List(jen.Id("rows"), jen.Err()).Op(":=").Id("db").Dot("QueryContext").Call(bindArgs(m)...)
		g.If(jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Nil(), jen.Qual("fmt", "Errorf").Call(jen.Lit(m.Statement.Name+": %v"), jen.Err())),
		)
		g.Defer().Id("rows").Dot("Close").Call()
		g.Var().Id("out").Index().Id(result)
		g.For(jen.Id("rows").Dot("Next").Call()).BlockFunc(func(loop *jen.Group) {
			var dests []jen.Code
			for i, info := range infos {
				v := fmt.Sprintf("v%d", i)
				scanType := info.GoType
				if info.Adapter {
					scanType = scanInputType(m, info)
				}
				loop.Var().Id(v).Add(typeCode(scanType, info.SQLNullable))
				dests = append(dests, jen.Op("&").Id(v))
			}
			loop.If(jen.Err().Op(":=").Id("rows").Dot("Scan").Call(dests...), jen.Err().Op("!=").Nil()).Block(
				jen.Return(jen.Nil(), jen.Qual("fmt", "Errorf").Call(jen.Lit(m.Statement.Name+": scan: %v"), jen.Err())),
			)
			loop.Var().Id("item").Id(result)
			for i, info := range infos {
				if !plainSet[info.Field.Alias] {
					continue
				}
				assignField(loop, m, info, fmt.Sprintf("v%d", i))
			}
			loop.Id("out").Op("=").Append(jen.Id("out"), jen.Id("item"))
		})
		g.Return(jen.Id("out"), jen.Id("rows").Dot("Err").Call())
	})
	return nil
}

func scanInputType(m *analyze.Model, info analyze.FieldInfo) string {
	for _, cfg := range m.Adapters.Configs() {
		if cfg.FuncName == info.AdapterRaw && cfg.Namespace == info.Field.Table {
			return cfg.InputType
		}
	}
	return "string"
}

func assignField(g *jen.Group, m *analyze.Model, info analyze.FieldInfo, v string) {
	prop := pascal(info.Property)
	if !info.Adapter {
		if info.Nullable && !info.SQLNullable {
			// generated property widened to nullable while the binding stays
			// non-null
			g.Id("item").Dot(prop).Op("=").Op("&").Id(v)
			return
		}
		if !info.Nullable && info.SQLNullable {
			g.If(jen.Id(v).Op("!=").Nil()).Block(jen.Id("item").Dot(prop).Op("=").Op("*").Id(v))
			return
		}
		g.Id("item").Dot(prop).Op("=").Id(v)
		return
	}
	fn, ok := m.OutputAdapterName(info)
	if !ok {
		g.Id("item").Dot(prop).Op("=").Id(v)
		return
	}
	cv := v + "c"
	if info.SQLNullable {
		converted := jen.Id(cv).Op(":=").Id(fn).Call(jen.Op("*").Id(v))
		if info.Nullable {
			g.If(jen.Id(v).Op("!=").Nil()).Block(
				converted,
				jen.Id("item").Dot(prop).Op("=").Op("&").Id(cv),
			)
			return
		}
		g.If(jen.Id(v).Op("!=").Nil()).Block(
			converted,
			jen.Id("item").Dot(prop).Op("=").Id(cv),
		)
		return
	}
	if info.Nullable {
		g.Id(cv).Op(":=").Id(fn).Call(jen.Id(v))
		g.Id("item").Dot(prop).Op("=").Op("&").Id(cv)
		return
	}
	g.Id("item").Dot(prop).Op("=").Id(fn).Call(jen.Id(v))
}

func emitExecFunc(f *jen.File, m *analyze.Model) error {
	name := pascal(m.Statement.Name)
	f.Commentf("%s executes the %s statement.", name, m.Statement.Name)
	f.Func().Id(name).Params(signatureParams(m)...).Params(jen.Qual("database/sql", "Result"), jen.Error()).BlockFunc(func(g *jen.Group) {
		g.List(jen.Id("res"), jen.Err()).Op(":=").Id("db").Dot("ExecContext").Call(bindArgs(m)...)
		g.If(jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Nil(), jen.Qual("fmt", "Errorf").Call(jen.Lit(m.Statement.Name+": %v"), jen.Err())),
		)
		g.Return(jen.Id("res"), jen.Nil())
	})
	return nil
}
