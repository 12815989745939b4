package options_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cppgen"
	"github.com/syssam/cppgen/compiler/options"
	"github.com/syssam/cppgen/schema"
)

const shopConfig = `
workers = 2

[features]
separate-inlines = true

[defaults.field]
deprecated = false

[packages."acme.shop"]
namespace = "acme::shop"
"Order.note.datatype" = "cow_string"
Order.items.accessors = ["get", "add"]
"Gone.class_name" = "X"

[services."acme.shop.Checkout"]
class_name = "CheckoutService"
"Place.class_name" = "PlaceCommand"

[extensions]
"field.wire_tag" = 50001
`

func shop() *schema.Package {
	return &schema.Package{
		Name:    "acme.shop",
		Path:    "shop.yaml",
		Options: []schema.Option{{Name: "include_prefix", Value: "gen"}},
		Messages: []*schema.Message{{
			Name: "Order",
			Fields: []*schema.Field{
				{Name: "note", Type: schema.TypeString, Quantifier: schema.Optional, Number: 1,
					Options: []schema.Option{{Name: "deprecated", Value: "true"}}},
				{Name: "items", Type: schema.TypeInt32, Quantifier: schema.Repeated, Number: 2,
					Options: []schema.Option{{Name: "wire_tag", Value: "7"}}},
				{Name: "raw", Type: schema.TypeBytes, Number: 3,
					Options: []schema.Option{{Name: "json_name", ID: 50100, Value: "r"}}},
			},
		}},
		Services: []*schema.Service{{
			Name: "Checkout",
			Commands: []*schema.Command{
				{Name: "Place", ID: 1, Request: "Order"},
				{Name: "Cancel", ID: 2, Request: "Order", Pos: schema.Position{File: "shop.yaml", Line: 30}},
			},
		}},
	}
}

func resolve(t *testing.T, cfgText string, pkgs ...*schema.Package) *options.Report {
	t.Helper()
	cfg, err := options.DecodeTOML([]byte(cfgText))
	require.NoError(t, err)
	r, err := options.NewResolver(cfg)
	require.NoError(t, err)
	set, err := schema.NewSet(pkgs...)
	require.NoError(t, err)
	require.NoError(t, set.Resolve())
	return r.Resolve(set)
}

func TestResolverLayers(t *testing.T) {
	p := shop()
	rep := resolve(t, shopConfig, p)
	require.NoError(t, rep.Err())

	t.Run("package", func(t *testing.T) {
		ns, ok := p.Resolved.String(schema.OptNamespace)
		assert.True(t, ok)
		assert.Equal(t, "acme::shop", ns)
		prefix, _ := p.Resolved.String(schema.OptIncludePrefix)
		assert.Equal(t, "gen", prefix)
	})

	t.Run("inline overrides global", func(t *testing.T) {
		note := p.Messages[0].Fields[0]
		assert.True(t, note.Resolved.Bool(schema.OptDeprecated, false))
		dt, _ := note.Resolved.String(schema.OptDatatype)
		assert.Equal(t, "cow_string", dt)
	})

	t.Run("nested keys and lists", func(t *testing.T) {
		items := p.Messages[0].Fields[1]
		acc, ok := items.Resolved.List(schema.OptAccessors)
		require.True(t, ok)
		assert.Equal(t, []string{"get", "add"}, acc)
		assert.False(t, items.Resolved.Bool(schema.OptDeprecated, true))
	})

	t.Run("extensions", func(t *testing.T) {
		exts := p.Messages[0].Fields[1].Resolved.Extensions()
		require.Len(t, exts, 1)
		assert.Equal(t, schema.Extension{Name: "wire_tag", ID: 50001, Value: "7"}, exts[0])

		raw := p.Messages[0].Fields[2].Resolved.Extensions()
		require.Len(t, raw, 1)
		assert.Equal(t, 50100, raw[0].ID)

		assert.Equal(t, []options.Customization{
			{Kind: schema.KindField, Name: "json_name"},
			{Kind: schema.KindField, Name: "wire_tag"},
		}, rep.Customized())
		assert.Equal(t, "field.json_name", rep.Customized()[0].String())
	})

	t.Run("services", func(t *testing.T) {
		svc := p.Services[0]
		name, _ := svc.Resolved.String(schema.OptServiceClassName)
		assert.Equal(t, "CheckoutService", name)
		place, _ := svc.Commands[0].Resolved.String(schema.OptMethodClassName)
		assert.Equal(t, "PlaceCommand", place)
		cancel, _ := svc.Commands[1].Resolved.String(schema.OptMethodClassName)
		assert.Equal(t, "Cancel", cancel)
		assert.False(t, rep.ServiceFailed("acme.shop", "Checkout"))
	})

	t.Run("warnings", func(t *testing.T) {
		require.Len(t, rep.Warnings, 2)
		assert.Equal(t, "shop.yaml:30: acme.shop.Checkout.Cancel: command has no class_name; using \"Cancel\"",
			rep.Warnings[0].String())
		assert.Contains(t, rep.Warnings[1].Message, `"Gone.class_name" names no element`)
	})
}

func TestResolverErrors(t *testing.T) {
	t.Run("missing service class name", func(t *testing.T) {
		p := shop()
		p.Messages[0].Fields[1].Options = nil
		rep := resolve(t, "", p)
		require.Error(t, rep.Err())
		assert.True(t, cppgen.IsConfigurationError(rep.Err()))
		assert.Contains(t, rep.Err().Error(), `acme.shop.Checkout option "class_name"`)
		assert.True(t, rep.ServiceFailed("acme.shop", "Checkout"))
		assert.False(t, rep.PackageFailed("acme.shop"))
		assert.Contains(t, rep.Customized(), options.Customization{Kind: schema.KindField, Name: "json_name"})
	})

	t.Run("unknown inline option", func(t *testing.T) {
		p := shop()
		p.Messages[0].Options = []schema.Option{{Name: "bogus", Value: "1"}}
		rep := resolve(t, shopConfig, p)
		require.Len(t, rep.Errors, 1)
		assert.Contains(t, rep.Errors[0].Error(), `acme.shop.Order option "bogus": unknown option`)
		assert.True(t, rep.PackageFailed("acme.shop"))
	})

	t.Run("bad bool", func(t *testing.T) {
		p := shop()
		p.Messages[0].Fields[0].Options = []schema.Option{{Name: "deprecated", Value: "sometimes"}}
		rep := resolve(t, shopConfig, p)
		require.Len(t, rep.Errors, 1)
		assert.Contains(t, rep.Errors[0].Error(), "expected a boolean")
	})

	t.Run("unknown override option", func(t *testing.T) {
		p := shop()
		rep := resolve(t, shopConfig+"\n[packages.\"acme.shop\".\"Order.note\"]\nflavor = \"x\"\n", p)
		require.Len(t, rep.Errors, 1)
		assert.Contains(t, rep.Errors[0].Error(), `unknown option "flavor"`)
	})

	t.Run("siblings continue", func(t *testing.T) {
		p := shop()
		p.Messages[0].Fields[0].Options = []schema.Option{{Name: "nope"}}
		p.Messages[0].Fields[1].Options = []schema.Option{{Name: "nope2"}}
		rep := resolve(t, shopConfig, p)
		assert.Len(t, rep.Errors, 2)
	})
}

func TestNewResolverValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  options.Config
		want string
	}{
		{
			name: "low extension id",
			cfg:  options.Config{Extensions: map[string]int{"field.tag": 12}},
			want: "below the custom threshold",
		},
		{
			name: "extension kind",
			cfg:  options.Config{Extensions: map[string]int{"table.tag": 50001}},
			want: "unknown element kind",
		},
		{
			name: "shadowed builtin",
			cfg:  options.Config{Extensions: map[string]int{"field.datatype": 50001}},
			want: "shadows a built-in option",
		},
		{
			name: "unknown default",
			cfg:  options.Config{Defaults: map[string]map[string]any{"field": {"colour": "red"}}},
			want: "unknown option",
		},
		{
			name: "unknown default kind",
			cfg:  options.Config{Defaults: map[string]map[string]any{"widget": {}}},
			want: "unknown element kind",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := options.NewResolver(&tt.cfg)
			require.Error(t, err)
			assert.True(t, cppgen.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolverDeterminism(t *testing.T) {
	first := shop()
	second := shop()
	rep1 := resolve(t, shopConfig, first)
	rep2 := resolve(t, shopConfig, second)
	assert.Equal(t, rep1.Warnings, rep2.Warnings)
	assert.Equal(t, first.Messages[0].Fields[1].Resolved, second.Messages[0].Fields[1].Resolved)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "cppgen.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
cache_backend: sqlite
stop_on_error: true
packages:
  acme.shop:
    namespace: "acme::shop"
`), 0o644))
		cfg, err := options.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.CacheBackend)
		assert.True(t, cfg.StopOnError)
		assert.Equal(t, "acme::shop", cfg.Packages["acme.shop"]["namespace"])
	})

	t.Run("toml", func(t *testing.T) {
		path := filepath.Join(dir, "cppgen.toml")
		require.NoError(t, os.WriteFile(path, []byte(shopConfig), 0o644))
		cfg, err := options.Load(path)
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.Workers)
		assert.True(t, cfg.Features["separate-inlines"])
		assert.Equal(t, 50001, cfg.Extensions["field.wire_tag"])
	})

	t.Run("unknown keys", func(t *testing.T) {
		_, err := options.DecodeTOML([]byte("colour = 1\n"))
		assert.ErrorContains(t, err, "unknown config keys: colour")
		_, err = options.DecodeYAML([]byte("colour: 1\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := options.Load(filepath.Join(dir, "missing.toml"))
		assert.Error(t, err)
	})
}
